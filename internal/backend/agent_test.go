package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/valpere/playconv/internal/aggregator"
)

// agentStub emulates the agents API. awaitRounds is how many round trips end
// in turn_awaiting_input before the turn completes; -1 never completes.
type agentStub struct {
	t           *testing.T
	awaitRounds int
	streaming   bool

	// noTurnID drops the turn id from awaiting turns.
	noTurnID bool

	agents     atomic.Int32
	roundTrips atomic.Int32
	queries    atomic.Int32
	deleted    atomic.Int32

	mu       sync.Mutex
	sessions map[string]string
	resumed  []string
}

func newAgentStub(t *testing.T, awaitRounds int, streaming bool) (*agentStub, *httptest.Server) {
	s := &agentStub{t: t, awaitRounds: awaitRounds, streaming: streaming, sessions: map[string]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/agents", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			AgentConfig struct {
				Instructions  string `json:"instructions"`
				MaxInferIters int    `json:"max_infer_iters"`
			} `json:"agent_config"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.AgentConfig.Instructions == "" {
			t.Error("expected instructions in agent config")
		}
		n := s.agents.Add(1)
		json.NewEncoder(w).Encode(map[string]string{"agent_id": fmt.Sprintf("agent-%d", n)})
	})
	mux.HandleFunc("POST /v1/agents/{agent}/session", func(w http.ResponseWriter, r *http.Request) {
		agent := r.PathValue("agent")
		session := "session-" + agent
		s.mu.Lock()
		s.sessions[session] = agent
		s.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"session_id": session})
	})
	mux.HandleFunc("POST /v1/agents/{agent}/session/{session}/turn", s.handleTurn)
	mux.HandleFunc("POST /v1/agents/{agent}/session/{session}/turn/{turn}/resume", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ToolResponses []toolResponse `json:"tool_responses"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		for _, tr := range body.ToolResponses {
			s.resumed = append(s.resumed, tr.Content)
		}
		s.mu.Unlock()
		s.handleTurn(w, r)
	})
	mux.HandleFunc("POST /v1/tool-runtime/rag-tool/query", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Content     string   `json:"content"`
			VectorDBIDs []string `json:"vector_db_ids"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if len(body.VectorDBIDs) != 2 || body.VectorDBIDs[0] != "dialect-A-docs" {
			t.Errorf("expected default collections, got %v", body.VectorDBIDs)
		}
		s.queries.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"content": []map[string]string{{"type": "text", "text": "use copy for " + body.Content}}})
	})
	mux.HandleFunc("DELETE /v1/agents/{agent}", func(w http.ResponseWriter, r *http.Request) {
		s.deleted.Add(1)
	})
	return s, httptest.NewServer(mux)
}

func (s *agentStub) handleTurn(w http.ResponseWriter, r *http.Request) {
	session := r.PathValue("session")
	s.mu.Lock()
	owner := s.sessions[session]
	s.mu.Unlock()
	if owner != r.PathValue("agent") {
		s.t.Errorf("session %s used with foreign agent %s", session, r.PathValue("agent"))
	}

	round := int(s.roundTrips.Add(1))
	turnID := "turn-" + session
	awaiting := s.awaitRounds < 0 || round <= s.awaitRounds

	turn := map[string]any{"turn_id": turnID, "output_message": map[string]any{"content": "- hosts: all\n"}}
	if awaiting {
		turn["output_message"] = map[string]any{
			"content":    "",
			"tool_calls": []map[string]any{{"call_id": fmt.Sprintf("call-%d", round), "tool_name": knowledgeSearchTool, "arguments": map[string]string{"query": "cookbook_file"}}},
		}
	}

	if awaiting && s.noTurnID {
		delete(turn, "turn_id")
	}

	if !s.streaming {
		json.NewEncoder(w).Encode(turn)
		return
	}

	frames := []string{
		`{"event":{"payload":{"event_type":"turn_start"}}}`,
		`{"event":{"payload":{"event_type":"step_progress","step_type":"tool_execution","delta":{"type":"tool_call","tool_call":"x"}}}}`,
	}
	eventType := "turn_awaiting_input"
	if !awaiting {
		eventType = "turn_complete"
		frames = append(frames,
			`{"event":{"payload":{"event_type":"step_progress","step_type":"inference","delta":{"type":"text","text":"- hosts: all\n"}}}}`,
			`{"event":{"payload":{"event_type":"step_progress","step_type":"inference","delta":{"type":"text","text":"  tasks: []\n"}}}}`,
		)
	}
	payload := map[string]any{"event_type": eventType, "turn": turn}
	if awaiting && s.noTurnID {
		delete(payload, "turn")
	}
	b, _ := json.Marshal(map[string]any{"event": map[string]any{"payload": payload}})
	writeSSE(w, append(frames, string(b))...)
}

func TestAgentAdapter_CompletesAfterToolCall(t *testing.T) {
	stub, server := newAgentStub(t, 1, true)
	defer server.Close()

	var seen []string
	a := NewAgentAdapter(server.Client())
	res, err := a.Transform(context.Background(), Config{Endpoint: server.URL, Streaming: true}, convertRequest(), func(c string) {
		seen = append(seen, c)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := aggregator.Aggregate(res.Chunks); got != "- hosts: all\n  tasks: []" {
		t.Errorf("unexpected aggregate %q", got)
	}
	if len(seen) != 2 {
		t.Errorf("expected only text deltas as chunks, got %q", seen)
	}
	if stub.roundTrips.Load() != 2 {
		t.Errorf("expected 2 round trips, got %d", stub.roundTrips.Load())
	}
	if stub.queries.Load() != 1 {
		t.Errorf("expected 1 retrieval query, got %d", stub.queries.Load())
	}
	if len(stub.resumed) != 1 || stub.resumed[0] != "use copy for cookbook_file" {
		t.Errorf("expected retrieval result to be sent back, got %q", stub.resumed)
	}
	if stub.deleted.Load() != 1 {
		t.Errorf("expected agent cleanup, got %d deletes", stub.deleted.Load())
	}
}

func TestAgentAdapter_NonStreaming(t *testing.T) {
	stub, server := newAgentStub(t, 2, false)
	defer server.Close()

	a := NewAgentAdapter(server.Client())
	res, err := a.Transform(context.Background(), Config{Endpoint: server.URL}, convertRequest(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := aggregator.Aggregate(res.Chunks); got != "- hosts: all" {
		t.Errorf("unexpected aggregate %q", got)
	}
	if stub.roundTrips.Load() != 3 {
		t.Errorf("expected 3 round trips, got %d", stub.roundTrips.Load())
	}
}

func TestAgentAdapter_ToolLoopExceededExactlyAtLimit(t *testing.T) {
	for _, limit := range []int{1, 2, 4, 7} {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			stub, server := newAgentStub(t, -1, true)
			defer server.Close()

			a := NewAgentAdapter(server.Client())
			_, err := a.Transform(context.Background(), Config{Endpoint: server.URL, Streaming: true, MaxToolIterations: limit}, convertRequest(), nil)
			if !errors.Is(err, ErrToolLoopExceeded) {
				t.Fatalf("expected ErrToolLoopExceeded, got %v", err)
			}
			if got := int(stub.roundTrips.Load()); got != limit {
				t.Errorf("expected exactly %d round trips, got %d", limit, got)
			}
		})
	}
}

func TestAgentAdapter_CompletesOnLastAllowedRoundTrip(t *testing.T) {
	stub, server := newAgentStub(t, 3, true)
	defer server.Close()

	a := NewAgentAdapter(server.Client())
	_, err := a.Transform(context.Background(), Config{Endpoint: server.URL, Streaming: true, MaxToolIterations: 4}, convertRequest(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.roundTrips.Load() != 4 {
		t.Errorf("expected 4 round trips, got %d", stub.roundTrips.Load())
	}
}

func TestAgentAdapter_SessionsArePrivate(t *testing.T) {
	stub, server := newAgentStub(t, 1, true)
	defer server.Close()

	a := NewAgentAdapter(server.Client())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := a.Transform(context.Background(), Config{Endpoint: server.URL, Streaming: true}, convertRequest(), nil); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if stub.agents.Load() != 8 {
		t.Errorf("expected one agent per call, got %d", stub.agents.Load())
	}
	if len(stub.sessions) != 8 {
		t.Errorf("expected 8 distinct sessions, got %d", len(stub.sessions))
	}
}

func TestAgentAdapter_AuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	a := NewAgentAdapter(server.Client())
	_, err := a.Transform(context.Background(), Config{Endpoint: server.URL}, convertRequest(), nil)
	if !errors.Is(err, ErrAuth) {
		t.Errorf("expected ErrAuth, got %v", err)
	}
}

func TestContentText(t *testing.T) {
	tests := map[string]string{
		`"plain"`: "plain",
		`{"type":"text","text":"one"}`:                      "one",
		`[{"type":"text","text":"a"},{"type":"text","text":"b"}]`: "ab",
		``: "",
	}
	for in, want := range tests {
		if got := contentText(json.RawMessage(in)); got != want {
			t.Errorf("contentText(%s): expected %q, got %q", in, want, got)
		}
	}
}

func TestAgentAdapter_AwaitingTurnWithoutIDIsMalformed(t *testing.T) {
	for _, streaming := range []bool{true, false} {
		t.Run(fmt.Sprintf("streaming=%v", streaming), func(t *testing.T) {
			stub, server := newAgentStub(t, -1, streaming)
			stub.noTurnID = true
			defer server.Close()

			a := NewAgentAdapter(server.Client())
			res, err := a.Transform(context.Background(), Config{Endpoint: server.URL, Streaming: streaming}, convertRequest(), nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := stub.roundTrips.Load(); got != 1 {
				t.Errorf("expected a single round trip, got %d", got)
			}
			if stub.queries.Load() != 0 || len(stub.resumed) != 0 {
				t.Errorf("expected no tool run or resume, got %d queries and %v", stub.queries.Load(), stub.resumed)
			}
			if len(res.Malformed) != 1 || !errors.Is(res.Malformed[0], ErrMalformedResponse) {
				t.Errorf("expected one malformed entry, got %v", res.Malformed)
			}
		})
	}
}
