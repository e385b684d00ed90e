package ticketing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"crm-interactions/internal/calls"
)

// ZammadClient opens tickets through the Zammad REST API
// (POST /api/v1/tickets, token authentication).
type ZammadClient struct {
	baseURL string
	token   string
	group   string
	client  *http.Client
}

func NewZammadClient(baseURL, token, group string, client *http.Client) *ZammadClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if group == "" {
		group = "Users"
	}
	return &ZammadClient{baseURL: strings.TrimRight(baseURL, "/"), token: token, group: group, client: client}
}

type zammadArticle struct {
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	Type        string `json:"type"`
	ContentType string `json:"content_type"`
	Internal    bool   `json:"internal"`
}

type zammadTicketRequest struct {
	Title      string        `json:"title"`
	Group      string        `json:"group"`
	CustomerID string        `json:"customer_id"`
	Article    zammadArticle `json:"article"`
	Note       string        `json:"note,omitempty"`
}

type zammadTicketResponse struct {
	ID     json.Number `json:"id"`
	Number string      `json:"number"`
}

func (z *ZammadClient) CreateTicket(ctx context.Context, req calls.TicketRequest) (calls.Ticket, error) {
	payload := zammadTicketRequest{
		Title:      req.Title,
		Group:      z.group,
		CustomerID: req.CustomerID,
		Article: zammadArticle{
			Subject:     req.Title,
			Body:        req.Article.Body,
			Type:        "note",
			ContentType: "text/plain",
		},
	}
	if req.CallID != "" {
		payload.Note = "call " + req.CallID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return calls.Ticket{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, z.baseURL+"/api/v1/tickets", bytes.NewReader(body))
	if err != nil {
		return calls.Ticket{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Token token="+z.token)

	res, err := z.client.Do(httpReq)
	if err != nil {
		return calls.Ticket{}, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return calls.Ticket{}, fmt.Errorf("zammad: create ticket: status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out zammadTicketResponse
	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return calls.Ticket{}, fmt.Errorf("zammad: decode response: %w", err)
	}
	if out.ID == "" {
		return calls.Ticket{}, errors.New("zammad: response missing ticket id")
	}
	return calls.Ticket{ID: out.ID.String(), Number: out.Number}, nil
}

// Sandbox numbers tickets locally. Used in mock mode and tests.
type Sandbox struct {
	mu      sync.Mutex
	next    int
	created []calls.TicketRequest
}

func NewSandbox() *Sandbox { return &Sandbox{next: 1} }

func (s *Sandbox) CreateTicket(ctx context.Context, req calls.TicketRequest) (calls.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.created = append(s.created, req)
	return calls.Ticket{ID: "T" + strconv.Itoa(id), Number: strconv.Itoa(10000 + id)}, nil
}

// Created returns the requests seen so far.
func (s *Sandbox) Created() []calls.TicketRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]calls.TicketRequest(nil), s.created...)
}
