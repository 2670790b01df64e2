package console

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bc-dunia/threadviz/internal/agentclient"
	"github.com/bc-dunia/threadviz/internal/config"
	"github.com/bc-dunia/threadviz/internal/gateway"
	"github.com/bc-dunia/threadviz/internal/hoststats"
	"github.com/bc-dunia/threadviz/internal/mockagent"
	"github.com/bc-dunia/threadviz/internal/types"
)

// startStack runs mock agent -> gateway and returns the gateway API root.
func startStack(t *testing.T) (*mockagent.Agent, string) {
	t.Helper()

	agentCfg := mockagent.DefaultConfig()
	agentCfg.TaskSecond = 5 * time.Millisecond
	agent := mockagent.New(agentCfg, hoststats.NewStaticSampler([]float64{12, 34}, 50))
	agentSrv := httptest.NewServer(agent.Handler())

	cfg := config.DefaultGatewayConfig()
	cfg.AgentURL = agentSrv.URL
	cfg.Auth.Secret = "integration"
	gw := gateway.NewServer(cfg, agentclient.New(agentSrv.URL))
	gwSrv := httptest.NewServer(gw.Handler())

	t.Cleanup(func() {
		gwSrv.Close()
		agentSrv.Close()
		agent.Stop(context.Background())
	})
	return agent, gwSrv.URL + "/api"
}

func TestConsoleThroughGatewayAndMockAgent(t *testing.T) {
	agent, apiRoot := startStack(t)

	dash := NewDashboard(NewHTTPGateway(apiRoot, nil), fastOptions())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		dash.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	waitFor(t, "connected with history", func() bool {
		v := dash.View()
		return v.Connectivity == types.ConnectivityConnected && len(v.History) >= 2
	})

	v := dash.View()
	if v.Snapshot.CPUCount != 2 || v.History[0].Cores[1] != 34 {
		t.Errorf("unexpected view %+v", v)
	}

	if err := dash.SetAlgorithm(context.Background(), types.AlgorithmLeastConnections); err != nil {
		t.Fatalf("SetAlgorithm: %v", err)
	}
	if agent.Algorithm() != types.AlgorithmLeastConnections {
		t.Errorf("agent algorithm = %s", agent.Algorithm())
	}

	ack, err := dash.RunTask(context.Background(), types.TaskIOBound, 1)
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	waitFor(t, "task in history", func() bool {
		snap := dash.View().Snapshot
		if snap == nil {
			return false
		}
		for _, rec := range snap.TaskHistory {
			if rec.TaskID == ack.TaskID && rec.Status == types.TaskStatusCompleted {
				return true
			}
		}
		return false
	})

	if err := dash.ClearHistory(context.Background()); err != nil {
		t.Fatalf("ClearHistory: %v", err)
	}
	waitFor(t, "history cleared on agent", func() bool {
		snap := dash.View().Snapshot
		return snap != nil && len(snap.TaskHistory) == 0
	})
	if dash.View().Error != "" {
		t.Errorf("unexpected operator error %q", dash.View().Error)
	}
}

func TestConsoleDisconnectsWhenAgentUnhealthy(t *testing.T) {
	agent, apiRoot := startStack(t)

	dash := NewDashboard(NewHTTPGateway(apiRoot, nil), fastOptions())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		dash.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	waitFor(t, "connected", func() bool { return dash.View().Connectivity == types.ConnectivityConnected })

	agent.SetHealthStatus("degraded")
	waitFor(t, "disconnected", func() bool { return dash.View().Connectivity == types.ConnectivityDisconnected })

	if dash.View().Error != ConnectErrorMessage {
		t.Errorf("expected connect error, got %q", dash.View().Error)
	}
	// A fetch already on the wire when the poller stopped may still land.
	time.Sleep(20 * time.Millisecond)
	stats := agent.Calls("/stats")
	time.Sleep(50 * time.Millisecond)
	if agent.Calls("/stats") != stats {
		t.Error("stats polled while disconnected")
	}
}
