// streamfeed serves demo document streams over WebSocket. Every connection
// to /streams/{stream} receives a ticking sample document as JSON Patch
// frames; ?finish=N ends the stream with a terminal message after N
// patches.
//
// Usage:
//
//	streamfeed -addr 127.0.0.1:8080 -interval 1s
package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	docstream "github.com/docstream/docstream.go"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "listen address")
	interval := flag.Duration("interval", time.Second, "delay between patches")
	flag.Parse()

	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	feed := &feedServer{log: zl, interval: *interval}

	zl.Info().Str("addr", *addr).Msg("streamfeed listening")
	srv := &http.Server{
		Addr:              *addr,
		Handler:           newRouter(feed),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		zl.Fatal().Err(err).Msg("server stopped")
	}
}

func newRouter(f *feedServer) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/streams/{stream}", f.handleStream)
	return router
}

type feedServer struct {
	log      zerolog.Logger
	interval time.Duration
	upgrader websocket.Upgrader
}

func (f *feedServer) handleStream(w http.ResponseWriter, r *http.Request) {
	stream := mux.Vars(r)["stream"]

	finish := 0
	if v := r.URL.Query().Get("finish"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "finish must be a positive integer", http.StatusBadRequest)
			return
		}
		finish = n
	}

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.log.Warn().Err(err).Msg("upgrade failed")
		return
	}

	log := f.log.With().Str("conn", ulid.Make().String()).Str("stream", stream).Logger()
	log.Info().Msg("stream attached")

	go f.publish(conn, log, stream, finish)
}

// publish writes one patch batch per tick until the consumer goes away or
// the finish cutoff is reached.
func (f *feedServer) publish(conn *websocket.Conn, log zerolog.Logger, stream string, finish int) {
	defer conn.Close()

	// Drain the read side so close handshakes complete.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for seq := 1; ; seq++ {
		<-ticker.C

		frame, err := patchFrame(stream, seq)
		if err != nil {
			log.Error().Err(err).Msg("encode frame")
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			log.Info().Err(err).Msg("stream detached")
			return
		}

		if finish > 0 && seq >= finish {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"finished":true}`)); err != nil {
				log.Info().Err(err).Msg("stream detached")
				return
			}
			log.Info().Int("patches", seq).Msg("stream finished")
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream complete")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return
		}
	}
}

// patchFrame builds the batch for one tick. The ops are all "add" so they
// apply against any consumer's starting document.
func patchFrame(stream string, seq int) ([]byte, error) {
	ops := []docstream.PatchOp{
		{Op: "add", Path: "/stream", Value: mustRaw(stream)},
		{Op: "add", Path: "/updates", Value: mustRaw(seq)},
		{Op: "add", Path: "/last_update", Value: mustRaw(time.Now().UTC().Format(time.RFC3339))},
	}
	if seq > 1 {
		// The stream name only needs setting once.
		ops = ops[1:]
	}
	return json.Marshal(struct {
		JSONPatch []docstream.PatchOp `json:"JsonPatch"`
	}{ops})
}

func mustRaw(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
