package api

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealed-ballot/auth"
	"sealed-ballot/messaging"
	"sealed-ballot/models"
	"sealed-ballot/phase"
	"sealed-ballot/service"
	"sealed-ballot/storage"
)

const base int64 = 1_700_000_000

type testEnv struct {
	t      *testing.T
	clock  *phase.ManualClock
	server *Server
}

type account struct {
	key    *ecdsa.PrivateKey
	wallet common.Address
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := phase.NewManualClock(time.Unix(base, 0))
	bus := messaging.NewBus(16, logger)

	dir, err := service.NewDirectory(context.Background(), service.Dependencies{
		Journal:   storage.NewMemoryStore(),
		Publisher: bus,
		Clock:     clock,
		Metrics:   service.NewMetricsCollector(),
		Logger:    logger,
	})
	require.NoError(t, err)
	t.Cleanup(dir.Close)

	server := NewServer(Options{
		Elections:  dir,
		Challenger: auth.NewChallenger(auth.NewMemoryChallengeStore(clock.Now), "ballot.test", 5*time.Minute),
		Tokens:     auth.NewTokenIssuer("test-secret-0123456789", "sealed-ballot", time.Hour, clock.Now),
		Events:     bus,
		Logger:     logger,
	})
	return &testEnv{t: t, clock: clock, server: server}
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, w.Code, w.Body.String())
	assert.Equal(t, code, decode[errorResponse](t, w).Code)
}

// login runs the challenge flow for a fresh wallet.
func (e *testEnv) login() *account {
	e.t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(e.t, err)
	acc := &account{key: key, wallet: crypto.PubkeyToAddress(key.PublicKey)}

	w := e.do(http.MethodPost, "/api/auth/challenge", "", ChallengeRequest{Address: acc.wallet.Hex()})
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	challenge := decode[ChallengeResponse](e.t, w)

	signature, err := auth.SignMessage([]byte(challenge.Message), key)
	require.NoError(e.t, err)

	w = e.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Address: acc.wallet.Hex(), Signature: hexutil.Encode(signature)})
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	login := decode[LoginResponse](e.t, w)
	assert.Equal(e.t, acc.wallet, login.Wallet)

	acc.token = login.Token
	return acc
}

func (e *testEnv) createElection(admin *account) string {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/elections", admin.token, CreateElectionRequest{
		Name:        "Library board",
		VotingStart: base + 100,
		VotingEnd:   base + 1_000,
	})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[service.Info](e.t, w).ID
}

func TestLoginRejectsWrongSigner(t *testing.T) {
	env := newTestEnv(t)
	victim, err := crypto.GenerateKey()
	require.NoError(t, err)
	attacker, err := crypto.GenerateKey()
	require.NoError(t, err)
	wallet := crypto.PubkeyToAddress(victim.PublicKey)

	w := env.do(http.MethodPost, "/api/auth/challenge", "", ChallengeRequest{Address: wallet.Hex()})
	require.Equal(t, http.StatusOK, w.Code)
	challenge := decode[ChallengeResponse](t, w)

	signature, err := auth.SignMessage([]byte(challenge.Message), attacker)
	require.NoError(t, err)
	w = env.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Address: wallet.Hex(), Signature: hexutil.Encode(signature)})
	assertError(t, w, http.StatusUnauthorized, "Unauthenticated")
}

func TestMutationsRequireToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/elections", "", CreateElectionRequest{Name: "x", VotingStart: base + 1, VotingEnd: base + 2})
	assertError(t, w, http.StatusUnauthorized, "Unauthenticated")

	w = env.do(http.MethodPost, "/api/elections", "not-a-token", CreateElectionRequest{Name: "x", VotingStart: base + 1, VotingEnd: base + 2})
	assertError(t, w, http.StatusUnauthorized, "Unauthenticated")
}

func TestElectionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login()
	alice := env.login()
	bob := env.login()
	voter := env.login()

	id := env.createElection(admin)
	prefix := "/api/elections/" + id

	for _, c := range []struct {
		acc  *account
		name string
	}{{alice, "Alice"}, {bob, "Bob"}} {
		w := env.do(http.MethodPost, prefix+"/candidates", c.acc.token, CandidateRequest{Name: c.name, Party: "Readers"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = env.do(http.MethodPost, prefix+"/candidates/"+c.acc.wallet.Hex()+"/approve", voter.token, nil)
		assertError(t, w, http.StatusForbidden, "Unauthorized")

		w = env.do(http.MethodPost, prefix+"/candidates/"+c.acc.wallet.Hex()+"/approve", admin.token, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := env.do(http.MethodPost, prefix+"/voters", voter.token, VoterRequest{Name: "Vera"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = env.do(http.MethodPost, prefix+"/voters", voter.token, VoterRequest{Name: "Vera"})
	assertError(t, w, http.StatusConflict, "DuplicateRequest")

	w = env.do(http.MethodGet, prefix+"/voters?status=pending", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Voter](t, w), 1)

	w = env.do(http.MethodPost, prefix+"/voters/"+voter.wallet.Hex()+"/approve", admin.token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodGet, prefix+"/candidates?status=approved", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	candidates := decode[[]models.Candidate](t, w)
	require.Len(t, candidates, 2)
	assert.Equal(t, uint64(2), candidates[1].ID)

	commitment := "0xc738b5b09a9697438b038e38384f7abd49615ca1942159a1844b9d47bd06540f"
	w = env.do(http.MethodPost, prefix+"/commit", voter.token, CommitRequest{Commitment: commitment})
	assertError(t, w, http.StatusConflict, "WrongPhase")

	env.clock.Set(time.Unix(base+100, 0))
	w = env.do(http.MethodPost, prefix+"/commit", alice.token, CommitRequest{Commitment: commitment})
	assertError(t, w, http.StatusForbidden, "NotApprovedVoter")

	w = env.do(http.MethodPost, prefix+"/commit", voter.token, CommitRequest{Commitment: commitment})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = env.do(http.MethodPost, prefix+"/commit", voter.token, CommitRequest{Commitment: commitment})
	assertError(t, w, http.StatusConflict, "AlreadyCommitted")

	w = env.do(http.MethodGet, prefix+"/status/"+voter.wallet.Hex(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[StatusResponse](t, w)
	assert.True(t, status.Voter.Approved)
	assert.True(t, status.Voter.HasCommitted)
	assert.False(t, status.Candidate.Registered)

	env.clock.Set(time.Unix(base+1_000, 0))
	w = env.do(http.MethodGet, prefix+"/commitments/unrevealed", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Commitment](t, w), 1)

	w = env.do(http.MethodPost, prefix+"/reveal", voter.token, RevealRequest{CandidateID: 2, Secret: "778"})
	assertError(t, w, http.StatusUnprocessableEntity, "CommitmentMismatch")

	w = env.do(http.MethodPost, prefix+"/reveal", voter.token, RevealRequest{CandidateID: 2, Secret: "777"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, uint64(1), decode[service.RevealReceipt](t, w).Count)

	w = env.do(http.MethodGet, prefix+"/results", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	results := decode[service.Results](t, w)
	assert.True(t, results.Provisional)
	assert.Equal(t, []uint64{2}, results.Winners)
	assert.Equal(t, []string{"Bob"}, results.WinnerNames)

	w = env.do(http.MethodPost, prefix+"/end", voter.token, nil)
	assertError(t, w, http.StatusForbidden, "Unauthorized")
	w = env.do(http.MethodPost, prefix+"/end", admin.token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodGet, prefix, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[service.Info](t, w)
	assert.Equal(t, models.PhaseEnded, info.Phase)
	assert.False(t, info.Active)

	w = env.do(http.MethodGet, prefix+"/audit", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	trail := decode[service.AuditTrail](t, w)
	assert.True(t, trail.IsValid)
	assert.Equal(t, 10, trail.BlockCount)

	w = env.do(http.MethodGet, "/api/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	metrics := decode[service.MetricsResponse](t, w)
	commits := metrics.Operations["commit_vote"]
	assert.Equal(t, 4, commits.Count)
	assert.Equal(t, 3, commits.Failures)
	assert.Equal(t, 1, commits.FailuresByCode["AlreadyCommitted"])
}

func TestUnknownElection(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/elections/nope", "", nil)
	assertError(t, w, http.StatusNotFound, "ElectionNotFound")
}

func TestBadInput(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login()
	id := env.createElection(admin)

	w := env.do(http.MethodGet, "/api/elections/"+id+"/candidates?status=maybe", "", nil)
	assertError(t, w, http.StatusBadRequest, "InvalidInput")

	w = env.do(http.MethodGet, "/api/elections/"+id+"/status/0x1234", "", nil)
	assertError(t, w, http.StatusBadRequest, "InvalidInput")

	w = env.do(http.MethodPost, "/api/elections/"+id+"/commit", admin.token, CommitRequest{Commitment: "0xabc"})
	assertError(t, w, http.StatusBadRequest, "InvalidInput")

	w = env.do(http.MethodPost, "/api/elections", admin.token, CreateElectionRequest{Name: "Past", VotingStart: base - 10, VotingEnd: base + 10})
	assertError(t, w, http.StatusBadRequest, "InvalidInput")

	w = env.do(http.MethodGet, "/api/elections/"+id+"/commitments/"+admin.wallet.Hex(), "", nil)
	assertError(t, w, http.StatusNotFound, "NoCommitment")
}

func TestRevealParsesSecretBeforePhase(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login()
	prefix := "/api/elections/" + env.createElection(admin)
	env.clock.Set(time.Unix(base+100, 0))

	w := env.do(http.MethodPost, prefix+"/reveal", admin.token, RevealRequest{CandidateID: 1, Secret: "not-a-number"})
	assertError(t, w, http.StatusBadRequest, "InvalidInput")

	w = env.do(http.MethodPost, prefix+"/reveal", admin.token, RevealRequest{CandidateID: 1, Secret: "777"})
	assertError(t, w, http.StatusConflict, "WrongPhase")
}

func TestVerifyCommitment(t *testing.T) {
	env := newTestEnv(t)
	hash := "0xc738b5b09a9697438b038e38384f7abd49615ca1942159a1844b9d47bd06540f"

	w := env.do(http.MethodPost, "/api/commitments/verify", "", VerifyCommitmentRequest{CandidateID: 2, Secret: "777", Commitment: hash})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"valid":true}`, w.Body.String())

	w = env.do(http.MethodPost, "/api/commitments/verify", "", VerifyCommitmentRequest{CandidateID: 777, Secret: "2", Commitment: hash})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"valid":false}`, w.Body.String())

	w = env.do(http.MethodPost, "/api/commitments/verify", "", VerifyCommitmentRequest{CandidateID: 2, Secret: "0", Commitment: hash})
	assertError(t, w, http.StatusBadRequest, "InvalidInput")
}

func TestEventStream(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login()
	voter := env.login()
	id := env.createElection(admin)

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + fmt.Sprintf("/api/elections/%s/events", id)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	w := env.do(http.MethodPost, "/api/elections/"+id+"/voters", voter.token, VoterRequest{Name: "Vera"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event models.Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, models.EventVoterRequested, event.Type)
	assert.Equal(t, voter.wallet, event.Subject)
	assert.Equal(t, id, event.ElectionID)
}
