package connection

import "time"

// WebSocket close codes the registry understands.
const (
	// CloseNormalClosure is the code sent when the registry shuts a
	// connection down deliberately.
	CloseNormalClosure = 1000

	// CloseAbnormalClosure is synthesized when the transport fails without
	// delivering a close frame.
	CloseAbnormalClosure = 1006
)

// Endpoint schemes accepted by Normalize.
const (
	WebsocketScheme       = "ws"
	SecureWebsocketScheme = "wss"
	HTTPScheme            = "http"
	HTTPSScheme           = "https"
)

// closeWriteTimeout bounds the close-frame write during teardown.
const closeWriteTimeout = 1 * time.Second
