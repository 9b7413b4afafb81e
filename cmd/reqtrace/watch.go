package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/reqtrace/internal/events"
	"github.com/alfredjeanlab/reqtrace/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream requirement events from NATS",
	GroupID: "trace",
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")
		if cfg.NATSURL == "" {
			return errors.New("watch requires REQTRACE_NATS_URL")
		}

		sub, err := events.NewNATSSubscriber(cfg.NATSURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("nats disconnected", "error", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				logger.Info("nats reconnected")
			}),
		)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer sub.Close()

		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			return fmt.Errorf("subscribing to events: %w", err)
		}
		defer cancel()

		ctx := cmd.Context()
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-ch:
				if !ok {
					return nil
				}
				if jsonOutput {
					fmt.Println(string(msg.Data))
					continue
				}
				fmt.Printf("%s  %s  %s\n",
					ui.RenderMuted(time.Now().Format(timeLayout)),
					ui.RenderAccent(strings.TrimPrefix(msg.Topic, events.Prefix)),
					describeEvent(msg.Data))
			}
		}
	},
}

// describeEvent picks the identifying fields out of an event payload.
func describeEvent(data []byte) string {
	var payload struct {
		Requirement *struct {
			RequirementID string `json:"requirement_id"`
			Title         string `json:"title"`
			Version       int    `json:"version"`
		} `json:"requirement"`
		RequirementID string `json:"requirement_id"`
		ProjectID     string `json:"project_id"`
		Entry         *struct {
			Action string `json:"action"`
		} `json:"entry"`
		Result *struct {
			SuccessCount int `json:"success_count"`
			FailedCount  int `json:"failed_count"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Sprintf("(undecodable payload: %v)", err)
	}

	switch {
	case payload.Requirement != nil:
		s := fmt.Sprintf("%s v%d %s", payload.Requirement.RequirementID, payload.Requirement.Version, payload.Requirement.Title)
		if payload.Entry != nil {
			s += " [" + payload.Entry.Action + "]"
		}
		return s
	case payload.Result != nil:
		return fmt.Sprintf("project %s: %d imported, %d failed", payload.ProjectID, payload.Result.SuccessCount, payload.Result.FailedCount)
	case payload.RequirementID != "":
		return payload.RequirementID
	}
	return string(data)
}

func init() {
	watchCmd.Flags().String("topic", events.Prefix+">", "NATS subject to subscribe to")
}
