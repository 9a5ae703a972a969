package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"story-app/internal/apperr"
	"story-app/internal/auth"
	"story-app/internal/service/llm"
	paymentService "story-app/internal/service/payment"
	"story-app/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	initialized []paymentService.InitializeRequest
	status      string
	amount      int64
}

func (g *fakeGateway) Initialize(_ context.Context, req paymentService.InitializeRequest) (*paymentService.Authorization, error) {
	g.initialized = append(g.initialized, req)
	return &paymentService.Authorization{
		AuthorizationURL: "https://checkout.example/" + req.Reference,
		AccessCode:       "code-1",
		Reference:        req.Reference,
	}, nil
}

func (g *fakeGateway) Verify(_ context.Context, reference string) (*paymentService.Transaction, error) {
	return &paymentService.Transaction{Reference: reference, Status: g.status, Amount: g.amount}, nil
}

type testServer struct {
	router   http.Handler
	database *testutil.MockDatabase
	provider *testutil.MockLLMProvider
	speaker  *testutil.MockSpeaker
	gateway  *fakeGateway
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := testutil.NewMockConfig()
	database := testutil.NewMemoryDatabase()
	cfg.DB = database

	provider := &testutil.MockLLMProvider{
		GenerateFunc: func(_ context.Context, req llm.GenerationRequest) (*llm.Generation, error) {
			return &llm.Generation{
				ID:           "gen-1",
				Content:      "A bee visits a flower.",
				Model:        "gpt-4o-mini",
				FinishReason: "stop",
				Usage:        &llm.ResponseUsage{PromptTokens: 12, CompletionTokens: 6, TotalTokens: 18},
			}, nil
		},
	}
	speaker := &testutil.MockSpeaker{
		SynthesizeFunc: func(_ context.Context, text, voice string, speed float64) ([]byte, error) {
			return []byte("mp3:" + voice), nil
		},
		TranscribeFunc: func(_ context.Context, audio io.Reader, filename, language string) (string, error) {
			data, err := io.ReadAll(audio)
			if err != nil {
				return "", err
			}
			return filename + ":" + string(data), nil
		},
	}
	gateway := &fakeGateway{status: "success", amount: 500000}

	h := NewHandlers(cfg, provider, speaker, gateway)
	return &testServer{
		router:   NewRouter(h),
		database: database,
		provider: provider,
		speaker:  speaker,
		gateway:  gateway,
	}
}

func (s *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRootAndHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	root := decode[RootResponse](t, rec)
	assert.Equal(t, "Aidanna API is running", root.Message)
	assert.Equal(t, "healthy", root.Status)

	rec = s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "ok", health.Database)
	assert.Equal(t, "mock", health.Provider)

	s.database.PingFunc = func(context.Context) error { return errors.New("connection refused") }
	rec = s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health = decode[HealthResponse](t, rec)
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "unavailable", health.Database)

	rec = s.do(t, http.MethodGet, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestModes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/modes", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	modes := decode[map[string]ModeInfo](t, rec)
	for _, id := range []string{"narrative", "dialogue", "case-study"} {
		require.Contains(t, modes, id)
		assert.NotEmpty(t, modes[id].Label)
		assert.NotEmpty(t, modes[id].Description)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodOptions, "/generate", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Empty(t, rec.Body.String())
	assert.Empty(t, s.provider.Calls)

	req := httptest.NewRequest(http.MethodOptions, "/generate", nil)
	req.Header.Set("Access-Control-Request-Headers", "authorization, x-client-version")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "authorization, x-client-version", rec.Header().Get("Access-Control-Allow-Headers"))

	rec = s.do(t, http.MethodGet, "/modes", nil)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestGenerate(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/generate", GenerateRequest{
		Prompt: "Tell me a story about how bees make honey",
		Mode:   "narrative",
		UserID: "user-1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[GenerateResponse](t, rec)
	assert.NotEmpty(t, resp.ID)
	assert.NotEmpty(t, resp.ConversationID)
	assert.Equal(t, "narrative", resp.Mode)
	assert.Contains(t, resp.Response, "A bee visits a flower.")
	assert.Equal(t, "STORY_REQUEST", resp.Metadata.Intent)
	assert.False(t, resp.Metadata.ShortCircuit)
	assert.Equal(t, "mock", resp.Metadata.Provider)
	require.NotNil(t, resp.Metadata.Tokens)
	assert.Equal(t, 18, resp.Metadata.Tokens.TotalTokens)
	assert.Equal(t, UsageData{Used: 1, Limit: 10, Remaining: 9, Tier: "free"}, resp.Usage)

	// Follow-up in the same conversation sees it in the listing
	rec = s.do(t, http.MethodGet, "/conversations?userId=user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[ConversationsResponse](t, rec)
	require.Len(t, list.Conversations, 1)
	assert.Equal(t, resp.ConversationID, list.Conversations[0].ID)
	assert.Equal(t, 2, list.Conversations[0].MessageCount)
}

func TestGenerate_WithAudio(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/generate", GenerateRequest{
		Prompt:       "Tell me a story about volcanoes erupting",
		UserID:       "user-1",
		IncludeAudio: true,
		Voice:        "nova",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[GenerateResponse](t, rec)
	audio, err := base64.StdEncoding.DecodeString(resp.Metadata.Audio)
	require.NoError(t, err)
	assert.Equal(t, "mp3:nova", string(audio))
	assert.Equal(t, "mp3", resp.Metadata.AudioFormat)
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name       string
		req        GenerateRequest
		setup      func(s *testServer)
		wantStatus int
	}{
		{
			name:       "empty prompt",
			req:        GenerateRequest{Prompt: "", UserID: "user-1"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown mode",
			req:        GenerateRequest{Prompt: "Tell me about rivers", Mode: "poem", UserID: "user-1"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing user",
			req:        GenerateRequest{Prompt: "Tell me about rivers"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "provider rate limited",
			req:  GenerateRequest{Prompt: "Tell me about rivers and deltas", UserID: "user-1"},
			setup: func(s *testServer) {
				s.provider.GenerateFunc = func(context.Context, llm.GenerationRequest) (*llm.Generation, error) {
					return nil, &apperr.RateLimitError{Provider: "mock", RetryAfter: 7 * time.Second}
				}
			},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name: "provider failure",
			req:  GenerateRequest{Prompt: "Tell me about rivers and deltas", UserID: "user-1"},
			setup: func(s *testServer) {
				s.provider.GenerateFunc = func(context.Context, llm.GenerationRequest) (*llm.Generation, error) {
					return nil, fmt.Errorf("%w: mock: boom", apperr.ErrUpstream)
				}
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			if tt.setup != nil {
				tt.setup(s)
			}

			rec := s.do(t, http.MethodPost, "/generate", tt.req)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			errResp := decode[ErrorResponse](t, rec)
			assert.Equal(t, tt.wantStatus, errResp.Code)
			assert.NotEmpty(t, errResp.Error)
		})
	}
}

func TestGenerate_RateLimitSetsRetryAfter(t *testing.T) {
	s := newTestServer(t)
	s.provider.GenerateFunc = func(context.Context, llm.GenerationRequest) (*llm.Generation, error) {
		return nil, &apperr.RateLimitError{Provider: "mock", RetryAfter: 7 * time.Second}
	}

	rec := s.do(t, http.MethodPost, "/generate", GenerateRequest{Prompt: "Tell me about glaciers", UserID: "user-1"})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "7", rec.Header().Get("Retry-After"))
	assert.Equal(t, 7, decode[ErrorResponse](t, rec).RetryAfter)
}

func TestGenerate_DailyLimit(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 10; i++ {
		rec := s.do(t, http.MethodPost, "/generate", GenerateRequest{Prompt: "Tell me about the moon", UserID: "user-1"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := s.do(t, http.MethodPost, "/generate", GenerateRequest{Prompt: "Tell me about the moon", UserID: "user-1"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	errResp := decode[ErrorResponse](t, rec)
	assert.True(t, errResp.LimitReached)
	assert.True(t, errResp.Upgrade)
	require.NotNil(t, errResp.Remaining)
	assert.Equal(t, 0, *errResp.Remaining)
	require.NotNil(t, errResp.Limit)
	assert.Equal(t, 10, *errResp.Limit)
	assert.Len(t, s.provider.Calls, 10)

	rec = s.do(t, http.MethodGet, "/usage?userId=user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, UsageData{Used: 10, Limit: 10, Remaining: 0, Tier: "free"}, decode[UsageData](t, rec))

	// Another user is unaffected
	rec = s.do(t, http.MethodGet, "/usage?userId=user-2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, UsageData{Used: 0, Limit: 10, Remaining: 10, Tier: "free"}, decode[UsageData](t, rec))
}

func TestUsage_RequiresUser(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/usage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerTokenIdentity(t *testing.T) {
	cfg := testutil.NewMockConfig()
	cfg.DB = testutil.NewMemoryDatabase()
	cfg.AppConfig.Auth.JWTSecret = []byte("test-secret")
	provider := &testutil.MockLLMProvider{
		GenerateFunc: func(context.Context, llm.GenerationRequest) (*llm.Generation, error) {
			return &llm.Generation{Content: "Rain falls."}, nil
		},
	}
	router := NewRouter(NewHandlers(cfg, provider, &testutil.MockSpeaker{}, &fakeGateway{}))

	token, err := auth.GenerateToken("token-user", cfg.AppConfig.Auth.JWTSecret, time.Hour)
	require.NoError(t, err)

	body, err := json.Marshal(GenerateRequest{Prompt: "Tell me about the water cycle", UserID: "body-user"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/usage?userId=token-user", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[UsageData](t, rec).Used)

	req = httptest.NewRequest(http.MethodGet, "/usage", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConversationEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/generate", GenerateRequest{Prompt: "Tell me about photosynthesis", UserID: "owner"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	convID := decode[GenerateResponse](t, rec).ConversationID

	rec = s.do(t, http.MethodGet, "/conversations/"+convID+"/messages?userId=owner", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	messages := decode[MessagesResponse](t, rec).Messages
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "assistant", messages[1].Role)

	rec = s.do(t, http.MethodGet, "/conversations/"+convID+"/messages?userId=intruder", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodDelete, "/conversations/"+convID+"?userId=intruder", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodDelete, "/conversations/"+convID+"?userId=owner", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[DeleteResponse](t, rec).Success)

	rec = s.do(t, http.MethodGet, "/conversations/"+convID+"/messages?userId=owner", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVoiceEndpoints(t *testing.T) {
	s := newTestServer(t)

	t.Run("tts uses default voice", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/voice/tts", SpeechRequest{Text: "Hello there"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[SpeechResponse](t, rec)
		assert.Equal(t, "alloy", resp.Voice)
		assert.Equal(t, "mp3", resp.Format)
		audio, err := base64.StdEncoding.DecodeString(resp.Audio)
		require.NoError(t, err)
		assert.Equal(t, "mp3:alloy", string(audio))
	})

	t.Run("tts rejects unknown voice", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/voice/tts", SpeechRequest{Text: "Hello", Voice: "robot"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("tts rejects empty text", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/voice/tts", SpeechRequest{Text: "  "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("stt json", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/voice/stt", TranscriptionRequest{
			Audio:    base64.StdEncoding.EncodeToString([]byte("voice")),
			Filename: "clip.mp3",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "clip.mp3:voice", decode[TranscriptionResponse](t, rec).Text)
	})

	t.Run("stt multipart", func(t *testing.T) {
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		part, err := writer.CreateFormFile("audio", "note.webm")
		require.NoError(t, err)
		_, err = part.Write([]byte("spoken"))
		require.NoError(t, err)
		require.NoError(t, writer.WriteField("language", "en"))
		require.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost, "/voice/stt", &body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "note.webm:spoken", decode[TranscriptionResponse](t, rec).Text)
	})

	t.Run("stt rejects bad base64", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/voice/stt", TranscriptionRequest{Audio: "%%%"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("voices", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/voice/voices", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[VoicesResponse](t, rec)
		assert.Len(t, resp.Voices, 6)
		assert.Equal(t, "alloy", resp.Default)
	})
}

func TestPaymentFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/payment", CheckoutRequest{UserID: "payer", Email: "payer@example.com", Plan: "premium"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	checkout := decode[CheckoutResponse](t, rec)
	assert.NotEmpty(t, checkout.Reference)
	assert.Contains(t, checkout.AuthorizationURL, checkout.Reference)
	require.Len(t, s.gateway.initialized, 1)
	assert.Equal(t, int64(500000), s.gateway.initialized[0].Amount)

	rec = s.do(t, http.MethodGet, "/payment?reference="+checkout.Reference, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	verify := decode[VerifyResponse](t, rec)
	assert.Equal(t, "success", verify.Status)
	assert.Equal(t, "premium", verify.Tier)
	require.NotNil(t, verify.ExpiresAt)

	rec = s.do(t, http.MethodGet, "/usage?userId=payer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	usage := decode[UsageData](t, rec)
	assert.True(t, usage.Unlimited)
	assert.Equal(t, "premium", usage.Tier)
}

func TestPaymentValidation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/payment", CheckoutRequest{UserID: "payer", Email: "not-an-email", Plan: "premium"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/payment", CheckoutRequest{UserID: "payer", Email: "payer@example.com", Plan: "gold"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/payment", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/payment?reference=unknown-ref", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentWebhook(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/payment", CheckoutRequest{UserID: "payer", Email: "payer@example.com", Plan: "premium"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reference := decode[CheckoutResponse](t, rec).Reference

	payload := []byte(`{"event":"charge.success","data":{"reference":"` + reference + `"}}`)
	post := func(signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/payment/webhook", bytes.NewReader(payload))
		req.Header.Set("x-paystack-signature", signature)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, post("bad-signature").Code)

	mac := hmac.New(sha512.New, []byte("sk_test_secret"))
	mac.Write(payload)
	assert.Equal(t, http.StatusOK, post(hex.EncodeToString(mac.Sum(nil))).Code)

	rec = s.do(t, http.MethodGet, "/usage?userId=payer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "premium", decode[UsageData](t, rec).Tier)
}
