package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

const watchPingInterval = 30 * time.Second

func newWatchCommand() *cobra.Command {
	var (
		server   string
		clientID string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print progress events pushed to a client id",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watch(ctx, server, clientID, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&server, "server", "ws://localhost:8000/ws", "websocket endpoint")
	cmd.Flags().StringVar(&clientID, "client-id", "", "client id to register as (generated by the server when empty)")
	return cmd
}

// watch connects to the progress channel and writes every received message to
// out, one per line, until ctx is done or the server closes the connection.
func watch(ctx context.Context, server, clientID string, out io.Writer) error {
	u, err := url.Parse(server)
	if err != nil {
		return fmt.Errorf("invalid server url: %w", err)
	}
	if clientID != "" {
		q := u.Query()
		q.Set("client_id", clientID)
		u.RawQuery = q.Encode()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket connection failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket connection failed: %w", err)
	}
	defer conn.Close()

	done := make(chan error, 1)
	go func() {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}
			fmt.Fprintln(out, string(message))
		}
	}()

	ticker := time.NewTicker(watchPingInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		case <-ticker.C:
			ping := map[string]string{"type": "ping", "timestamp": time.Now().UTC().Format(time.RFC3339)}
			if err := conn.WriteJSON(ping); err != nil {
				return fmt.Errorf("failed to send ping: %w", err)
			}
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				return err
			}
			return nil
		}
	}
}
