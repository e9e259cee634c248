package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"retirement-sim-lab/internal/kernel"
	"retirement-sim-lab/internal/observability"
	"retirement-sim-lab/internal/params"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The service sits behind an API gateway that owns origin policy.
	CheckOrigin: func(*http.Request) bool { return true },
}

const wsWriteTimeout = 10 * time.Second

// Stream message kinds.
const (
	wsKindPhase  = "phase"
	wsKindMonth  = "month"
	wsKindResult = "result"
	wsKindError  = "error"
)

// wsMessage is one frame of the simulation stream.
type wsMessage struct {
	Kind string `json:"kind"`

	// Phase frames.
	Phase string `json:"phase,omitempty"`

	// Month frames carry one trace row at a time.
	Month any `json:"month,omitempty"`

	// Result frames carry the final simulate envelope.
	Result *simulateResponse `json:"result,omitempty"`

	// Error frames.
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// handleSimulateStream runs one simulation over a WebSocket, streaming phase
// markers and month-level rows before the final result. The request record
// arrives as the first text frame, in the same envelope POST /simulate uses.
func (s *Server) handleSimulateStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Printf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	observability.DefaultMetrics.WSStreamsActive.Inc()
	defer observability.DefaultMetrics.WSStreamsActive.Dec()

	var req simulateRequest
	if err := conn.ReadJSON(&req); err != nil {
		s.writeWSError(conn, codeValidationError, "decode request frame: "+err.Error())
		return
	}
	if req.PacketBuildRequest == nil {
		s.writeWSError(conn, codeMissingInput, "packetBuildRequest is required")
		return
	}

	start := time.Now()

	p, err := params.Normalize(req.PacketBuildRequest)
	if err != nil {
		s.writeWSError(conn, wsErrorCode(err), err.Error())
		return
	}

	// An explicit path seed skips the monte carlo phase entirely, so the
	// stream opens with the phase that will actually run.
	phase := "monte_carlo"
	if p.PathSeed != nil {
		phase = "replay"
	}
	s.writeWS(conn, wsMessage{Kind: wsKindPhase, Phase: phase})

	result, err := s.orch.Run(r.Context(), p)
	if err != nil {
		s.writeWSError(conn, wsErrorCode(err), err.Error())
		return
	}
	elapsed := time.Since(start)

	if result.Trace != nil {
		if p.PathSeed == nil {
			s.writeWS(conn, wsMessage{Kind: wsKindPhase, Phase: "replay"})
		}
		for i := range result.Trace.Months {
			if !s.writeWS(conn, wsMessage{Kind: wsKindMonth, Month: result.Trace.Months[i]}) {
				return
			}
		}
	}

	runID := s.persistRun(r.Context(), p, result, elapsed.Milliseconds())

	s.writeWS(conn, wsMessage{Kind: wsKindResult, Result: &simulateResponse{
		Success:          true,
		Payload:          result.RawPayload,
		MC:               result.Stats,
		ExemplarPath:     result.ExemplarPath,
		BlockedOutputs:   result.BlockedOutputs,
		BaseSeed:         result.BaseSeed,
		PathsRun:         result.PathsRun,
		ElapsedMs:        elapsed.Milliseconds(),
		ReplayMode:       result.ReplayMode,
		RunID:            runID,
		AnnualSnapshots:  result.AnnualSnapshots,
		FirstMonthEvents: result.FirstMonthEvents,
		Trace:            result.Trace,
		TraceNote:        result.TraceNote,
	}})

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteTimeout))
}

// wsErrorCode maps an error onto the same codes the HTTP surface uses.
func wsErrorCode(err error) string {
	switch {
	case params.IsMissingInput(err):
		return codeMissingInput
	case errors.Is(err, kernel.ErrUnavailable):
		return codeServiceUnavailable
	case errors.Is(err, kernel.ErrParse):
		return codeParseError
	default:
		var compErr *kernel.ComputationError
		if errors.As(err, &compErr) {
			return codeKernelError
		}
		return codeValidationError
	}
}

func (s *Server) writeWS(conn *websocket.Conn, msg wsMessage) bool {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Printf("websocket write: %v", err)
		return false
	}
	return true
}

func (s *Server) writeWSError(conn *websocket.Conn, code, message string) {
	s.writeWS(conn, wsMessage{Kind: wsKindError, Code: code, Message: message})
}
