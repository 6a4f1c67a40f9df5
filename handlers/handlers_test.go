package handlers_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reputation-chain/consensus"
	"reputation-chain/handlers"
	"reputation-chain/ledger"
	"reputation-chain/logger"
	"reputation-chain/models"
	"reputation-chain/repository"
	"reputation-chain/reputation"
	"reputation-chain/routers"
	"reputation-chain/transport"
	"reputation-chain/txpool"
)

type mockRepo struct {
	mu     sync.Mutex
	rounds map[uint64]*models.RoundRecord
}

func newMockRepo() *mockRepo {
	return &mockRepo{rounds: make(map[uint64]*models.RoundRecord)}
}

func (m *mockRepo) PutRound(rec *models.RoundRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *rec
	m.rounds[rec.Round] = &copy
	return nil
}

func (m *mockRepo) GetRound(round uint64) (*models.RoundRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rounds[round]
	if !ok {
		return nil, repository.ErrRoundNotFound
	}
	copy := *rec
	return &copy, nil
}

func (m *mockRepo) LatestRound() (*models.RoundRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.RoundRecord
	for _, rec := range m.rounds {
		if latest == nil || rec.Round > latest.Round {
			latest = rec
		}
	}
	if latest == nil {
		return nil, repository.ErrRoundNotFound
	}
	copy := *latest
	return &copy, nil
}

func (m *mockRepo) ListRounds(limit int) ([]*models.RoundRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []*models.RoundRecord
	for r := uint64(len(m.rounds)); r > 0; r-- {
		if limit > 0 && len(res) >= limit {
			break
		}
		if rec, ok := m.rounds[r]; ok {
			res = append(res, rec)
		}
	}
	return res, nil
}

type zeroRand struct{}

func (zeroRand) Float64() float64 { return 0 }
func (zeroRand) Intn(int) int     { return 0 }

type testEnv struct {
	router     *mux.Router
	controller *consensus.Controller
	hub        *transport.Hub
	repo       *mockRepo
}

func TestMain(m *testing.M) {
	logger.Logger = zap.NewNop()
	os.Exit(m.Run())
}

func testServer(cfg consensus.Config) *testEnv {
	repo := newMockRepo()
	hub := transport.NewHub()
	c := consensus.NewController(cfg, ledger.New(cfg.TransactionsPerBlock),
		reputation.NewTable(reputation.DefaultParams()), txpool.New(nil),
		consensus.WithNotifier(hub), consensus.WithArchive(repo), consensus.WithRand(zeroRand{}))
	handler := handlers.NewHandler(c, hub, repo)
	router := mux.NewRouter()
	routers.RegisterRoutes(router, handler)
	return &testEnv{router: router, controller: c, hub: hub, repo: repo}
}

func defaultEnv() *testEnv {
	return testServer(consensus.DefaultConfig())
}

func (e *testEnv) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if s, ok := body.(string); ok {
		reader = bytes.NewReader([]byte(s))
	} else {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	res := httptest.NewRecorder()
	e.router.ServeHTTP(res, req)
	return res
}

func decode(t *testing.T, res *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), v), res.Body.String())
}

func TestJoin_Success(t *testing.T) {
	env := defaultEnv()

	res := env.do(http.MethodPost, "/join", map[string]string{"node_id": "N1"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var body map[string]interface{}
	decode(t, res, &body)
	assert.Equal(t, "joined", body["status"])
	assert.Equal(t, 1.0, body["current_chain_length"])
	assert.Equal(t, 100.0, body["reputation"])
}

func TestJoin_Twice(t *testing.T) {
	env := defaultEnv()
	env.do(http.MethodPost, "/join", map[string]string{"node_id": "N1"})

	res := env.do(http.MethodPost, "/join", map[string]string{"node_id": "N1"})
	require.Equal(t, http.StatusOK, res.Code)

	var body models.JoinResult
	decode(t, res, &body)
	assert.Equal(t, models.JoinStatusAlreadyJoined, body.Status)
	assert.Equal(t, 1, env.controller.Table().Len())
}

func TestJoin_BadPayload(t *testing.T) {
	env := defaultEnv()

	res := env.do(http.MethodPost, "/join", "{not json")
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = env.do(http.MethodPost, "/join", map[string]string{"node_id": ""})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "node_id is required")
}

func TestPing(t *testing.T) {
	env := defaultEnv()
	for _, id := range []string{"A", "B", "C"} {
		env.do(http.MethodPost, "/join", map[string]string{"node_id": id})
	}

	var first, second models.Status
	decode(t, env.do(http.MethodGet, "/ping", nil), &first)
	decode(t, env.do(http.MethodGet, "/ping", nil), &second)

	assert.Equal(t, 3, first.TotalNodes)
	assert.Equal(t, 3, first.OnlineNodes)
	assert.Equal(t, 100.0, first.AverageReputation)
	assert.Equal(t, 1, first.ChainLength)
	assert.Equal(t, first.ChainLength, second.ChainLength)
	assert.Equal(t, first.OnlineNodes, second.OnlineNodes)
}

func TestSubmissions_AreAcknowledged(t *testing.T) {
	env := defaultEnv()

	res := env.do(http.MethodPost, "/proposals", map[string]interface{}{
		"node_id":       "nobody",
		"transactions":  []string{"a"},
		"previous_hash": "x",
	})
	assert.Equal(t, http.StatusAccepted, res.Code)

	res = env.do(http.MethodPost, "/votes", map[string]string{"node_id": "nobody", "block_hash": "x"})
	assert.Equal(t, http.StatusAccepted, res.Code)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/proposals", "[").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/votes", "[").Code)
}

func TestChainAndBlocks(t *testing.T) {
	env := defaultEnv()

	res := env.do(http.MethodGet, "/chain", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var chain struct {
		Length int             `json:"length"`
		Blocks []*models.Block `json:"blocks"`
	}
	decode(t, res, &chain)
	require.Equal(t, 1, chain.Length)
	assert.Equal(t, models.GenesisProposer, chain.Blocks[0].Proposer)

	res = env.do(http.MethodGet, "/blocks/"+chain.Blocks[0].Hash, nil)
	assert.Equal(t, http.StatusOK, res.Code)

	res = env.do(http.MethodGet, "/blocks/deadbeef", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestReputations(t *testing.T) {
	env := defaultEnv()
	env.do(http.MethodPost, "/join", map[string]string{"node_id": "B"})
	env.do(http.MethodPost, "/join", map[string]string{"node_id": "A"})

	var nodes []models.Node
	decode(t, env.do(http.MethodGet, "/reputations", nil), &nodes)
	require.Len(t, nodes, 2)
	assert.Equal(t, "B", nodes[0].ID)
	assert.Equal(t, 100.0, nodes[1].Reputation)
}

func TestRounds(t *testing.T) {
	env := defaultEnv()

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/rounds/latest", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/rounds/1", nil).Code)

	var empty []models.RoundRecord
	decode(t, env.do(http.MethodGet, "/rounds", nil), &empty)
	assert.Empty(t, empty)

	for r := uint64(1); r <= 3; r++ {
		env.repo.PutRound(&models.RoundRecord{Round: r, Outcome: models.OutcomeNoProposal})
	}

	var rec models.RoundRecord
	decode(t, env.do(http.MethodGet, "/rounds/latest", nil), &rec)
	assert.Equal(t, uint64(3), rec.Round)

	decode(t, env.do(http.MethodGet, "/rounds/2", nil), &rec)
	assert.Equal(t, uint64(2), rec.Round)

	var list []models.RoundRecord
	decode(t, env.do(http.MethodGet, "/rounds?limit=2", nil), &list)
	assert.Len(t, list, 2)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/rounds?limit=x", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/rounds/abc", nil).Code)
}

func waitForEvent(t *testing.T, events <-chan models.Event, typ string) models.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func TestRoundOverHTTP(t *testing.T) {
	cfg := consensus.DefaultConfig()
	cfg.RoundDuration = 2 * time.Second
	cfg.EarlyExit = true
	env := testServer(cfg)
	for _, id := range []string{"N1", "N2", "N3"} {
		env.do(http.MethodPost, "/join", map[string]string{"node_id": id})
	}

	events, cancel := env.hub.Subscribe(64)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		env.controller.Run(ctx)
		close(stopped)
	}()
	defer func() {
		stop()
		<-stopped
	}()

	start := waitForEvent(t, events, models.EventRoundStart).Data.(models.RoundStart)
	require.Equal(t, "N1", start.Proposer)

	var chain struct {
		Blocks []*models.Block `json:"blocks"`
	}
	decode(t, env.do(http.MethodGet, "/chain", nil), &chain)

	res := env.do(http.MethodPost, "/proposals", map[string]interface{}{
		"node_id":       "N1",
		"transactions":  start.AvailableTransactions[:5],
		"previous_hash": chain.Blocks[len(chain.Blocks)-1].Hash,
	})
	require.Equal(t, http.StatusAccepted, res.Code)

	proposal := waitForEvent(t, events, models.EventBlockProposal).Data.(models.BlockProposal)
	for _, id := range []string{"N1", "N2"} {
		res := env.do(http.MethodPost, "/votes", map[string]string{"node_id": id, "block_hash": proposal.BlockHash})
		require.Equal(t, http.StatusAccepted, res.Code)
	}

	end := waitForEvent(t, events, models.EventRoundEnd).Data.(models.RoundEnd)
	require.True(t, end.Success, end.Error)
	assert.Equal(t, 2, end.NewChainLength)

	// archived after the reputation broadcast
	waitForEvent(t, events, models.EventReputationUpdate)
	require.Eventually(t, func() bool {
		_, err := env.repo.GetRound(1)
		return err == nil
	}, time.Second, 10*time.Millisecond)

	var rec models.RoundRecord
	decode(t, env.do(http.MethodGet, "/rounds/1", nil), &rec)
	assert.Equal(t, models.OutcomeCommitted, rec.Outcome)
	assert.Equal(t, proposal.BlockHash, rec.BlockHash)
	assert.Len(t, rec.Votes, 2)

	res = env.do(http.MethodGet, "/blocks/"+proposal.BlockHash, nil)
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestEvents_StreamsServerSentEvents(t *testing.T) {
	env := defaultEnv()
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, ": subscribed\n", line)
	_, err = reader.ReadString('\n')
	require.NoError(t, err)

	env.hub.Publish(models.Event{
		Type: models.EventRoundEnd,
		Data: models.RoundEnd{Round: 4, Outcome: models.OutcomeNoOnlineNodes},
	})

	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: round_end\n", line)

	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "))

	var end models.RoundEnd
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &end))
	assert.Equal(t, uint64(4), end.Round)
	assert.Equal(t, models.OutcomeNoOnlineNodes, end.Outcome)
}
