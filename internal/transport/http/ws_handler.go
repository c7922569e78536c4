package http

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"webinar-quiz-client/internal/app"
	"webinar-quiz-client/internal/domain"
)

// WSHandler drives one attempt runner per websocket connection, so a browser
// page can render the runner view and forward clicks.
type WSHandler struct {
	store    *app.AttemptStore
	quizzes  app.QuizRepository
	grader   app.Grader
	tick     time.Duration
	upgrader websocket.Upgrader
}

func NewWSHandler(store *app.AttemptStore, quizzes app.QuizRepository, grader app.Grader, tick time.Duration) *WSHandler {
	return &WSHandler{
		store:   store,
		quizzes: quizzes,
		grader:  grader,
		tick:    tick,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Option string `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into an attempt runner.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	webinarID := r.URL.Query().Get("webinarId")
	if quizID == "" || userID == "" || webinarID == "" {
		http.Error(w, "missing quizId, userId, or webinarId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-closeSignals:
		}
	}

	var runner *app.Runner
	runner = app.NewRunner(app.RunnerConfig{
		Store:        h.store,
		Quizzes:      h.quizzes,
		Grader:       h.grader,
		UserID:       userID,
		WebinarID:    webinarID,
		QuizID:       quizID,
		TickInterval: h.tick,
		Notify: func(n domain.Notice) {
			push(outboundMessage[any]{Type: "notice", Payload: n})
		},
		OnChange: func() {
			push(outboundMessage[any]{Type: "state", Payload: runner.View()})
		},
	})

	// The writer is not running yet, so the error frame goes out directly.
	if err := runner.Mount(r.Context()); err != nil {
		if writeErr := conn.WriteJSON(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}); writeErr != nil {
			log.Printf("ws write error: %v", writeErr)
		}
		return
	}

	// Only the writer goroutine touches the connection for writes.
	go func() {
		defer close(writerDone)
		for {
			select {
			case msg := <-send:
				if err := conn.WriteJSON(msg); err != nil {
					log.Printf("ws write error: %v", err)
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	push(outboundMessage[any]{Type: "state", Payload: runner.View()})
	// A reload resumes the attempt right away; a fresh attempt waits for "start".
	if runner.View().Phase != domain.PhaseNotStarted {
		if err := runner.Start(r.Context()); err != nil {
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		}
	}
	h.readLoop(r, conn, runner, push)

	close(closeSignals)
	<-writerDone
	runner.Close()
	runner.Wait()
}

func (h *WSHandler) readLoop(r *http.Request, conn *websocket.Conn, runner *app.Runner, push func(outboundMessage[any])) {
	ctx := r.Context()
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}

		var err error
		switch inbound.Type {
		case "start":
			err = runner.Start(ctx)
		case "select":
			var payload selectPayload
			if jsonErr := json.Unmarshal(inbound.Payload, &payload); jsonErr != nil || payload.Option == "" {
				push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid select payload"}})
				continue
			}
			err = runner.Select(payload.Option)
		case "next":
			err = runner.Next(ctx)
		case "submit":
			err = runner.Submit(ctx)
		case "retry":
			err = runner.Retry(ctx)
		case "state":
			push(outboundMessage[any]{Type: "state", Payload: runner.View()})
		default:
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
		if err != nil {
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		}
	}
}
