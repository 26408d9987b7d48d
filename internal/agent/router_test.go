package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/llm"
)

func TestRouterKeywords(t *testing.T) {
	router := NewRouter(nil, silentLog())
	ctx := context.Background()

	cases := []struct {
		query       string
		hasDocument bool
		want        string
	}{
		{"write a vlookup for column B", false, RouteFormula},
		{"what formula sums only positive values?", false, RouteFormula},
		{"summarize the revenue trend", true, RouteAnalysis},
		{"compare Q2 and Q3 performance", true, RouteAnalysis},
		{"duplicate the summary slide", true, RouteEdit},
		{"insert three rows above the totals", true, RouteEdit},
		{"hello there", false, RouteChat},
		{"thanks!", true, RouteChat},
	}

	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			assert.Equal(t, tc.want, router.Route(ctx, tc.query, tc.hasDocument))
		})
	}
}

func TestRouterDocumentGating(t *testing.T) {
	router := NewRouter(nil, silentLog())
	ctx := context.Background()

	// Edit and analysis need an open document.
	assert.Equal(t, RouteChat, router.Route(ctx, "summarize the revenue trend", false))
	assert.Equal(t, RouteChat, router.Route(ctx, "duplicate the summary slide", false))

	// Formula questions stand alone.
	assert.Equal(t, RouteFormula, router.Route(ctx, "write a vlookup for column B", false))
}

func TestRouterClassifierFallback(t *testing.T) {
	classified := 0
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			classified++
			assert.Contains(t, req.System, "exactly one word")
			return &llm.CompletionResponse{Content: " Analysis \n"}, nil
		},
	}

	router := NewRouter(mock, silentLog())
	route := router.Route(context.Background(), "what stands out about the quarterly numbers here", true)
	assert.Equal(t, RouteAnalysis, route)
	assert.Equal(t, 1, classified)
}

func TestRouterClassifierShortQuerySkipped(t *testing.T) {
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			t.Fatal("classifier should not run for short queries")
			return nil, nil
		},
	}

	router := NewRouter(mock, silentLog())
	assert.Equal(t, RouteChat, router.Route(context.Background(), "hi there", true))
}

func TestRouterClassifierFailure(t *testing.T) {
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, fmt.Errorf("provider down")
		},
	}

	router := NewRouter(mock, silentLog())
	route := router.Route(context.Background(), "what stands out about the quarterly numbers here", true)
	assert.Equal(t, RouteChat, route)
}

func TestRouterClassifierNonsenseAnswer(t *testing.T) {
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: "I think this is about spreadsheets."}, nil
		},
	}

	router := NewRouter(mock, silentLog())
	route := router.Route(context.Background(), "what stands out about the quarterly numbers here", true)
	assert.Equal(t, RouteChat, route)
}
