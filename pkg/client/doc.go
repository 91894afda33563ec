// Package client assembles an event client from a configuration.
//
// New wires the WebSocket transport, envelope codec, router, connection
// manager and lifecycle bridge. When the configuration has no URL the
// server is located over mDNS first.
//
//	cfg, _ := config.Load("eventlink.yaml")
//	c, err := client.New(ctx, cfg, client.Options{})
//	if err != nil {
//		return err
//	}
//	defer c.Stop()
//
//	c.Subscribe("chat.message", func(env envelope.Envelope) error {
//		var msg ChatMessage
//		return env.Decode(&msg)
//	})
//	c.Open()
//
// Each Client is independent; there is no package-level instance.
package client
