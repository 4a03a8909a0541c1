package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/valpere/playconv/internal/ctxlog"
)

const knowledgeSearchTool = "knowledge_search"

// AgentAdapter drives a llama-stack style agent: it creates a private agent
// and session per call, runs a turn, answers the agent's retrieval tool calls
// against the configured collections, and resumes the turn until the agent
// completes or MaxToolIterations round trips have been spent.
type AgentAdapter struct {
	client *http.Client
	topK   int
}

func NewAgentAdapter(client *http.Client) *AgentAdapter {
	return &AgentAdapter{client: defaultClient(client), topK: 3}
}

func (a *AgentAdapter) Name() string {
	return "agent"
}

type toolCall struct {
	CallID    string          `json:"call_id"`
	ToolName  string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments"`
}

type agentTurn struct {
	TurnID        string `json:"turn_id"`
	OutputMessage struct {
		Content    json.RawMessage `json:"content"`
		ToolCalls  []toolCall      `json:"tool_calls"`
		StopReason string          `json:"stop_reason"`
	} `json:"output_message"`
}

type turnEvent struct {
	Event struct {
		Payload struct {
			EventType string `json:"event_type"`
			StepType  string `json:"step_type"`
			Delta     *struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"delta"`
			Turn *agentTurn `json:"turn"`
		} `json:"payload"`
	} `json:"event"`
}

type toolResponse struct {
	CallID   string `json:"call_id"`
	ToolName string `json:"tool_name"`
	Content  string `json:"content"`
}

// turnState is what one round trip left behind.
type turnState struct {
	turnID    string
	completed bool
	toolCalls []toolCall
}

// agentSession is private to one Transform call.
type agentSession struct {
	a         *AgentAdapter
	cfg       Config
	base      string
	agentID   string
	sessionID string
	result    *Result
	onChunk   ChunkFunc
}

func (a *AgentAdapter) Transform(ctx context.Context, cfg Config, req Request, onChunk ChunkFunc) (*Result, error) {
	cfg = cfg.WithDefaults()
	result := &Result{Backend: a.Name(), Model: cfg.Model, Metadata: map[string]string{}}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	log := ctxlog.FromContext(ctx).With("backend", a.Name())
	s := &agentSession{a: a, cfg: cfg, base: versioned(cfg.Endpoint), result: result, onChunk: onChunk}

	if err := s.open(ctx, req); err != nil {
		return result, err
	}
	defer s.close(ctx)
	log.Debug("agent session opened", "agent_id", s.agentID, "session_id", s.sessionID,
		"collections", strings.Join(cfg.RetrievalCollections, ","))

	state, err := s.turn(ctx, req.Source)
	for round := 1; ; round++ {
		if err != nil {
			return result, err
		}
		if state.completed {
			result.Metadata["round_trips"] = strconv.Itoa(round)
			return result, nil
		}
		if round >= cfg.MaxToolIterations {
			return result, fmt.Errorf("%w: agent still awaiting tool output after %d round trips", ErrToolLoopExceeded, round)
		}
		responses, terr := s.runTools(ctx, state.toolCalls)
		if terr != nil {
			return result, terr
		}
		state, err = s.resume(ctx, state.turnID, responses)
	}
}

func (s *agentSession) open(ctx context.Context, req Request) error {
	agentConfig := map[string]any{
		"model":        s.cfg.Model,
		"instructions": Instructions(req.Mode, req.Dialect, req.Hints, true),
		"sampling_params": map[string]any{
			"strategy":   map[string]any{"type": "top_p", "temperature": 0.3, "top_p": 0.9},
			"max_tokens": s.cfg.MaxTokens,
		},
		"client_tools": []map[string]any{{
			"name":        knowledgeSearchTool,
			"description": "Search the conversion guidance collections for relevant examples",
			"parameters": map[string]any{
				"query": map[string]any{"param_type": "string", "description": "search query", "required": true},
			},
		}},
		"tool_config":                map[string]any{"tool_choice": "auto"},
		"max_infer_iters":            s.cfg.MaxToolIterations,
		"enable_session_persistence": false,
	}

	var created struct {
		AgentID string `json:"agent_id"`
	}
	if err := s.call(ctx, s.base+"/agents", map[string]any{"agent_config": agentConfig}, &created); err != nil {
		return err
	}
	if created.AgentID == "" {
		return fmt.Errorf("%w: %w", ErrTransport, malformed("agent creation returned no agent_id"))
	}
	s.agentID = created.AgentID

	var session struct {
		SessionID string `json:"session_id"`
	}
	name := fmt.Sprintf("playconv-%s-%d", req.Mode, time.Now().UnixNano())
	if err := s.call(ctx, s.agentURL()+"/session", map[string]any{"session_name": name}, &session); err != nil {
		return err
	}
	if session.SessionID == "" {
		return fmt.Errorf("%w: %w", ErrTransport, malformed("session creation returned no session_id"))
	}
	s.sessionID = session.SessionID
	return nil
}

// close deletes the agent. Failures are only logged.
func (s *agentSession) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.agentURL(), nil)
	if err != nil {
		return
	}
	if s.cfg.Credential != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Credential)
	}
	resp, err := s.a.client.Do(req)
	if err != nil {
		ctxlog.FromContext(ctx).Debug("agent cleanup failed", "agent_id", s.agentID, "error", err)
		return
	}
	resp.Body.Close()
}

func (s *agentSession) agentURL() string {
	return s.base + "/agents/" + s.agentID
}

func (s *agentSession) turnURL() string {
	return s.agentURL() + "/session/" + s.sessionID + "/turn"
}

func (s *agentSession) call(ctx context.Context, url string, body, out any) error {
	resp, err := postJSON(ctx, s.a.client, url, s.cfg.Credential, body, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, malformed("failed to decode %s: %v", url, err))
	}
	return nil
}

func (s *agentSession) turn(ctx context.Context, source string) (turnState, error) {
	body := map[string]any{
		"messages": []chatMessage{{Role: "user", Content: source}},
		"stream":   s.cfg.Streaming,
	}
	return s.roundTrip(ctx, s.turnURL(), body)
}

func (s *agentSession) resume(ctx context.Context, turnID string, responses []toolResponse) (turnState, error) {
	body := map[string]any{
		"tool_responses": responses,
		"stream":         s.cfg.Streaming,
	}
	return s.roundTrip(ctx, s.turnURL()+"/"+turnID+"/resume", body)
}

// roundTrip performs one turn or resume call.
func (s *agentSession) roundTrip(ctx context.Context, url string, body any) (turnState, error) {
	resp, err := postJSON(ctx, s.a.client, url, s.cfg.Credential, body, s.cfg.Streaming)
	if err != nil {
		return turnState{}, err
	}
	defer resp.Body.Close()

	if !s.cfg.Streaming {
		var t agentTurn
		if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
			s.result.Malformed = append(s.result.Malformed, malformed("failed to decode turn: %v", err))
			return turnState{completed: true}, nil
		}
		state := s.finishTurn(&t, true)
		if !state.completed && state.turnID == "" {
			s.result.Malformed = append(s.result.Malformed, malformed("turn awaits tool output but has no turn id"))
			state.completed = true
		}
		return state, nil
	}

	log := ctxlog.FromContext(ctx).With("backend", s.a.Name())
	var state turnState
	streamed, terminal := false, false
	err = readSSE(resp.Body, func(data string) error {
		var ev turnEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			log.Warn("skipping malformed frame", "error", err)
			s.result.Malformed = append(s.result.Malformed, malformed("frame %q: %v", truncate(data, 80), err))
			return nil
		}
		p := ev.Event.Payload
		switch p.EventType {
		case "step_progress":
			if p.Delta != nil && p.Delta.Type == "text" {
				s.result.emit(s.onChunk, p.Delta.Text)
				streamed = streamed || p.Delta.Text != ""
				return nil
			}
			log.Debug("ignoring non-text delta", "step_type", p.StepType)
		case "turn_complete":
			if p.Turn != nil {
				state = s.finishTurn(p.Turn, !streamed)
			}
			state.completed = true
			terminal = true
			return errStopStream
		case "turn_awaiting_input":
			terminal = true
			if p.Turn == nil || p.Turn.TurnID == "" {
				s.result.Malformed = append(s.result.Malformed, malformed("turn_awaiting_input without a turn id"))
				state = turnState{completed: true}
				return errStopStream
			}
			state = s.finishTurn(p.Turn, false)
			state.completed = false
			return errStopStream
		default:
			log.Debug("ignoring agent event", "event_type", p.EventType)
		}
		return nil
	})
	if err != nil {
		return state, transportError("stream read failed", err)
	}
	if !terminal {
		// Stream ended without a terminal event; treat what arrived as the answer.
		s.result.Malformed = append(s.result.Malformed, malformed("turn stream ended without turn_complete"))
		state.completed = true
	}
	return state, nil
}

// finishTurn inspects a turn. withContent emits the output message content,
// used when no text was streamed.
func (s *agentSession) finishTurn(t *agentTurn, withContent bool) turnState {
	state := turnState{turnID: t.TurnID, toolCalls: t.OutputMessage.ToolCalls}
	state.completed = len(state.toolCalls) == 0
	if state.completed && withContent {
		s.result.emit(s.onChunk, contentText(t.OutputMessage.Content))
	}
	return state
}

// runTools answers every tool call in order. Only knowledge_search is known.
func (s *agentSession) runTools(ctx context.Context, calls []toolCall) ([]toolResponse, error) {
	log := ctxlog.FromContext(ctx).With("backend", s.a.Name())
	responses := make([]toolResponse, 0, len(calls))
	for _, call := range calls {
		resp := toolResponse{CallID: call.CallID, ToolName: call.ToolName}
		if call.ToolName != knowledgeSearchTool {
			resp.Content = fmt.Sprintf("unknown tool %q", call.ToolName)
			responses = append(responses, resp)
			continue
		}
		content, err := s.retrieve(ctx, queryArgument(call.Arguments))
		if err != nil {
			if errors.Is(err, ErrAuth) || ctx.Err() != nil {
				return nil, err
			}
			log.Warn("retrieval failed", "call_id", call.CallID, "error", err)
			content = "retrieval failed: " + err.Error()
		}
		resp.Content = content
		responses = append(responses, resp)
	}
	return responses, nil
}

func (s *agentSession) retrieve(ctx context.Context, query string) (string, error) {
	body := map[string]any{
		"content":       query,
		"vector_db_ids": s.cfg.RetrievalCollections,
		"query_config":  map[string]any{"max_chunks": s.a.topK},
	}
	var out struct {
		Content json.RawMessage `json:"content"`
	}
	if err := s.call(ctx, s.base+"/tool-runtime/rag-tool/query", body, &out); err != nil {
		return "", err
	}
	return contentText(out.Content), nil
}

func queryArgument(raw json.RawMessage) string {
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err == nil {
		if q, ok := args["query"].(string); ok {
			return q
		}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// contentText flattens interleaved content: a string, a {text} item, or a
// list of items.
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	type item struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	var one item
	if err := json.Unmarshal(raw, &one); err == nil && one.Text != "" {
		return one.Text
	}
	var many []item
	if err := json.Unmarshal(raw, &many); err == nil {
		var sb strings.Builder
		for _, it := range many {
			sb.WriteString(it.Text)
		}
		return sb.String()
	}
	return ""
}
