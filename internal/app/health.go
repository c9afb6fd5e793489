package app

import (
	"context"

	cfg "github.com/rachmataditiya/odoo-mcp-server/internal/config"
	"github.com/rachmataditiya/odoo-mcp-server/internal/erpclient"
	"github.com/rachmataditiya/odoo-mcp-server/internal/configapi"
	"github.com/rachmataditiya/odoo-mcp-server/internal/transport"
)

// instanceReachability probes every configured instance with a cheap
// list_models call and reports per-instance reachability for /health.
func instanceReachability(ctx context.Context, store *cfg.Store, pool *erpclient.ClientPool) map[string]string {
	out := map[string]string{}
	doc, err := store.LoadInstances()
	if err != nil {
		out["*"] = "config unavailable: " + err.Error()
		return out
	}
	fallback := cfg.LoadInstanceDefaults(cfg.OSProcessSettings{})
	for _, inst := range doc.Instances {
		desc := cfg.ApplyDefaults(inst, fallback)
		client, err := pool.Get(desc)
		if err != nil {
			out[inst.Name] = "unreachable: " + err.Error()
			continue
		}
		if _, err := client.ListModels(ctx, nil, erpclient.ListOptions{Limit: 1}); err != nil {
			out[inst.Name] = "unreachable: " + err.Error()
			continue
		}
		out[inst.Name] = "reachable"
	}
	return out
}

func transportHealthCheck(store *cfg.Store, pool *erpclient.ClientPool) func(context.Context) transport.HealthReport {
	return func(ctx context.Context) transport.HealthReport {
		return transport.HealthReport{Status: "ok", Instances: instanceReachability(ctx, store, pool)}
	}
}

func configAPIHealthCheck(store *cfg.Store, pool *erpclient.ClientPool) func(context.Context) configapi.HealthReport {
	return func(ctx context.Context) configapi.HealthReport {
		return configapi.HealthReport{Status: "ok", Instances: instanceReachability(ctx, store, pool)}
	}
}
