// Command connectify is a terminal client for the Connectify rooms service.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Vanamu-Sumalatha/Connectify-sub001/clients/go/connectify"
)

var (
	flagServer string
	flagUser   string
	flagJSON   bool

	messagesLimit int
)

func main() {
	root := &cobra.Command{
		Use:           "connectify",
		Short:         "Course discussion rooms client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", envOr("CONNECTIFY_URL", "http://localhost:8080"), "server base URL")
	root.PersistentFlags().StringVar(&flagUser, "user", os.Getenv("CONNECTIFY_USER"), "platform user id")
	root.PersistentFlags().BoolVar(&flagJSON, "json", false, "output raw JSON")

	root.AddCommand(newRoomsCmd())
	root.AddCommand(newMessagesCmd())
	root.AddCommand(newSendCmd())
	root.AddCommand(newRetryCmd())
	root.AddCommand(newWatchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// newCached builds the cached client every command runs through, so sends
// survive server outages and message views degrade to the local cache.
func newCached() (*connectify.CachedClient, error) {
	if flagUser == "" {
		return nil, fmt.Errorf("no user id: set --user or CONNECTIFY_USER")
	}
	cache, err := connectify.NewCache("")
	if err != nil {
		return nil, err
	}
	client := connectify.NewClient(flagServer, flagUser)
	return connectify.NewCachedClient(client, cache), nil
}

func newRoomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List your rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := connectify.NewClient(flagServer, flagUser)
			resp, err := client.ListRooms(cmd.Context())
			if err != nil {
				return err
			}

			if flagJSON {
				return printJSON(resp)
			}
			if len(resp.Rooms) == 0 {
				fmt.Println("no rooms yet")
				return nil
			}
			for _, r := range resp.Rooms {
				unread := ""
				if r.UnreadCount > 0 {
					unread = fmt.Sprintf(" (%d unread)", r.UnreadCount)
				}
				fmt.Printf("%s  %s%s\n", r.Room.ID, r.Room.Name, unread)
				if r.LastMessagePreview != "" {
					fmt.Printf("    %s\n", r.LastMessagePreview)
				}
			}
			return nil
		},
	}
}

func newMessagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages <room-or-course>",
		Short: "Show a room's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := newCached()
			if err != nil {
				return err
			}

			msgs, err := cc.Messages(cmd.Context(), args[0], messagesLimit)
			if err != nil {
				return err
			}

			if flagJSON {
				return printJSON(msgs)
			}
			for _, m := range msgs {
				printMessage(m)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&messagesLimit, "limit", 50, "max messages to fetch")
	return cmd
}

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <room-or-course> <message>",
		Short: "Send a message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := newCached()
			if err != nil {
				return err
			}

			content := join(args[1:])
			msg, sendErr := cc.Send(cmd.Context(), args[0], content)
			if sendErr != nil {
				fmt.Fprintf(os.Stderr, "send failed, kept locally: %v\n", sendErr)
				fmt.Println("run 'connectify retry' when back online")
				return nil
			}

			if flagJSON {
				return printJSON(msg)
			}
			fmt.Printf("sent %s\n", msg.ID)
			return nil
		},
	}
}

func newRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Resend messages kept locally after failed sends",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := newCached()
			if err != nil {
				return err
			}

			pending := cc.PendingCount()
			if pending == 0 {
				fmt.Println("nothing to retry")
				return nil
			}

			confirmed, err := cc.Retry(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("confirmed %d of %d pending\n", confirmed, pending)
			return nil
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <room-or-course>",
		Short: "Stream a room's messages live",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := newCached()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Print history first, which also resolves the identifier to a
			// canonical room id for the subscription
			msgs, err := cc.Messages(ctx, args[0], messagesLimit)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				printMessage(m)
			}

			state, roomID := cc.Resolution(args[0])
			if state != connectify.ResolutionResolved {
				return fmt.Errorf("cannot watch: room not resolved while offline")
			}

			client := connectify.NewClient(flagServer, flagUser)
			ch := connectify.NewChannel(client, connectify.ChannelConfig{AutoReconnect: true})
			ch.OnMessageCreated(func(ev connectify.ChannelEvent) {
				if ev.Message != nil {
					fmt.Printf("[%s] %s: %s\n", formatTS(ev.Message.Timestamp), ev.Message.SenderID, ev.Message.Content)
				}
			})
			ch.OnStateChange(func(s connectify.ChannelState) {
				fmt.Fprintf(os.Stderr, "-- channel %s\n", s)
			})

			if err := ch.Connect(ctx); err != nil {
				return err
			}
			defer ch.Disconnect()
			if err := ch.Subscribe(ctx, roomID); err != nil {
				return err
			}

			<-ctx.Done()
			return nil
		},
	}
}

func printMessage(m connectify.CachedMessage) {
	sender := m.SenderName
	if sender == "" {
		sender = m.SenderID
	}
	marker := ""
	if m.Local {
		marker = fmt.Sprintf(" [%s]", m.Status)
	}
	fmt.Printf("[%s] %s: %s%s\n", formatTS(m.Timestamp), sender, m.Content, marker)
}

func formatTS(unixMs int64) string {
	return time.UnixMilli(unixMs).Local().Format("15:04")
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func join(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += " " + p
	}
	return out
}
