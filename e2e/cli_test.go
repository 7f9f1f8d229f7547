package e2e_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/avalon/internal/api"
	"github.com/mcoot/avalon/internal/factory"
)

// cliRunner manages CLI binary execution for one seat
type cliRunner struct {
	binaryPath  string
	serverURL   string
	sessionFile string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(projectRoot, "bin", "avalon-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/avalon")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return &cliRunner{
		binaryPath:  binaryPath,
		serverURL:   serverURL,
		sessionFile: filepath.Join(t.TempDir(), "session.json"),
	}
}

// seat returns a runner sharing the binary with its own session file
func (r *cliRunner) seat(t *testing.T) *cliRunner {
	t.Helper()
	return &cliRunner{
		binaryPath:  r.binaryPath,
		serverURL:   r.serverURL,
		sessionFile: filepath.Join(t.TempDir(), "session.json"),
	}
}

func (r *cliRunner) run(args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--session-file", r.sessionFile,
		"--output", "json",
	}, args...)

	cmd := exec.Command(r.binaryPath, fullArgs...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer manages a real HTTP server for e2e tests
type testServer struct {
	server   *http.Server
	addr     string
	shutdown func()
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	// Create application
	app, err := factory.New(factory.Config{Logger: logger})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = app.Notifier.Run(ctx) }()

	router := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		GameController: app.GameController,
		Notifier:       app.Notifier,
		Random:         app.Random,
		Metrics:        app.Metrics,
	})

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	// Wait for server to be ready
	serverURL := "http://" + addr
	waitForServer(t, serverURL+"/api/v1/health")

	return &testServer{
		server: server,
		addr:   serverURL,
		shutdown: func() {
			cancel()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = server.Shutdown(shutdownCtx)
		},
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

// Response types for JSON parsing
type createResponse struct {
	GameID   string `json:"game_id"`
	PlayerID string `json:"player_id"`
}

type joinResponse struct {
	PlayerID string `json:"player_id"`
}

type questView struct {
	ID          string   `json:"id"`
	RoundNumber int      `json:"round_number"`
	Size        int      `json:"size"`
	Leader      string   `json:"leader"`
	Members     []string `json:"members"`
	Status      string   `json:"status"`
}

type gameView struct {
	ID           string      `json:"id"`
	Players      []string    `json:"players"`
	MyName       string      `json:"my_name"`
	MyRole       string      `json:"my_role"`
	CurrentQuest *questView  `json:"current_quest"`
	QuestHistory []questView `json:"quest_history"`
	Status       string      `json:"status"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("health")
	require.NoError(t, err, "output: %s", output)

	var resp healthResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestCLI_CreateJoinAndState(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	alice := newCLIRunner(t, ts.addr)
	bob := alice.seat(t)

	output, err := alice.run("game", "create", "--name", "Alice")
	require.NoError(t, err, "output: %s", output)
	var created createResponse
	require.NoError(t, json.Unmarshal([]byte(output), &created))
	assert.Len(t, created.GameID, 6)
	assert.NotEmpty(t, created.PlayerID)

	output, err = bob.run("game", "join", created.GameID, "--name", "Bob")
	require.NoError(t, err, "output: %s", output)
	var joined joinResponse
	require.NoError(t, json.Unmarshal([]byte(output), &joined))
	assert.NotEmpty(t, joined.PlayerID)

	// the session file carries Bob's identity
	output, err = bob.run("game", "state")
	require.NoError(t, err, "output: %s", output)
	var view gameView
	require.NoError(t, json.Unmarshal([]byte(output), &view))
	assert.Equal(t, created.GameID, view.ID)
	assert.Equal(t, "Bob", view.MyName)
	assert.Equal(t, []string{"Alice", "Bob"}, view.Players)
	assert.Equal(t, "NOT_STARTED", view.Status)
}

func TestCLI_FullRound(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	names := []string{"Alice", "Bob", "Cara", "Dan", "Eve"}
	seats := map[string]*cliRunner{}
	seats["Alice"] = newCLIRunner(t, ts.addr)

	output, err := seats["Alice"].run("game", "create", "--name", "Alice")
	require.NoError(t, err, "output: %s", output)
	var created createResponse
	require.NoError(t, json.Unmarshal([]byte(output), &created))

	for _, name := range names[1:] {
		seats[name] = seats["Alice"].seat(t)
		output, err := seats[name].run("game", "join", created.GameID, "--name", name)
		require.NoError(t, err, "%s join: %s", name, output)
	}

	// Bob cannot start Alice's game
	output, err = seats["Bob"].run("game", "start", "--roles", "MERLIN,PERCIVAL,LOYAL_SERVANT,MORGANA,ASSASSIN")
	assert.Error(t, err)
	assert.Contains(t, output, "AUTHORIZATION_ERROR")

	output, err = seats["Alice"].run("game", "start", "--roles", "merlin,percival,loyal_servant,morgana,assassin")
	require.NoError(t, err, "output: %s", output)
	var msg messageResponse
	require.NoError(t, json.Unmarshal([]byte(output), &msg))
	assert.Equal(t, "Game started", msg.Message)

	view := state(t, seats["Alice"])
	assert.Equal(t, "IN_PROGRESS", view.Status)
	assert.NotEmpty(t, view.MyRole)
	require.NotNil(t, view.CurrentQuest)
	assert.Equal(t, 1, view.CurrentQuest.RoundNumber)
	assert.Equal(t, 2, view.CurrentQuest.Size)
	leader := view.CurrentQuest.Leader
	t.Logf("Round 1 leader: %s", leader)

	// the leader picks themselves and one other player
	partner := names[0]
	if partner == leader {
		partner = names[1]
	}
	output, err = seats[leader].run("quest", "propose", leader, partner)
	require.NoError(t, err, "output: %s", output)

	// a second proposal for the same attempt is a conflict
	output, err = seats[leader].run("quest", "propose", leader, partner)
	assert.Error(t, err)
	assert.Contains(t, output, "CONFLICT")

	for _, name := range names {
		output, err := seats[name].run("quest", "approve")
		require.NoError(t, err, "%s approve: %s", name, output)
	}

	for _, name := range []string{leader, partner} {
		output, err := seats[name].run("quest", "succeed")
		require.NoError(t, err, "%s succeed: %s", name, output)
	}

	view = state(t, seats["Cara"])
	require.Len(t, view.QuestHistory, 1)
	assert.Equal(t, "PASSED", view.QuestHistory[0].Status)
	require.NotNil(t, view.CurrentQuest)
	assert.Equal(t, 2, view.CurrentQuest.RoundNumber)
	assert.Equal(t, 3, view.CurrentQuest.Size)
	assert.NotEqual(t, leader, view.CurrentQuest.Leader)
}

func TestCLI_Events(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	alice := newCLIRunner(t, ts.addr)
	output, err := alice.run("game", "create", "--name", "Alice")
	require.NoError(t, err, "output: %s", output)

	// connected plus the initial state, then disconnect
	output, err = alice.run("events", "--json", "--count", "2")
	require.NoError(t, err, "output: %s", output)

	lines := strings.Split(strings.TrimSpace(output), "\n")
	require.Len(t, lines, 2)
	var evt struct {
		Event string `json:"event"`
		Data  string `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &evt))
	assert.Equal(t, "connected", evt.Event)
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &evt))
	assert.Equal(t, "state", evt.Event)
	assert.Contains(t, evt.Data, `"my_name":"Alice"`)
}

func TestCLI_ErrorHandling(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// No session yet
	output, err := cli.run("game", "state")
	assert.Error(t, err)
	assert.Contains(t, output, "no saved session")

	// Unknown game
	output, err = cli.run("game", "join", "ZZZZZZ", "--name", "Alice")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "not found")

	// Empty name
	output, err = cli.run("game", "create", "--name", "  ")
	assert.Error(t, err)
	assert.Contains(t, output, "VALIDATION_ERROR")
}

func state(t *testing.T, r *cliRunner) gameView {
	t.Helper()
	output, err := r.run("game", "state")
	require.NoError(t, err, "output: %s", output)
	var view gameView
	require.NoError(t, json.Unmarshal([]byte(output), &view))
	return view
}
