package banner

import (
	"fmt"
	"strings"

	"hubsync/pkg/config"
)

const banner = `
██╗  ██╗██╗   ██╗██████╗ ███████╗██╗   ██╗███╗   ██╗ ██████╗
██║  ██║██║   ██║██╔══██╗██╔════╝╚██╗ ██╔╝████╗  ██║██╔════╝
███████║██║   ██║██████╔╝███████╗ ╚████╔╝ ██╔██╗ ██║██║
██╔══██║██║   ██║██╔══██╗╚════██║  ╚██╔╝  ██║╚██╗██║██║
██║  ██║╚██████╔╝██████╔╝███████║   ██║   ██║ ╚████║╚██████╗
╚═╝  ╚═╝ ╚═════╝ ╚═════╝ ╚══════╝   ╚═╝   ╚═╝  ╚═══╝ ╚═════╝
`

// Print shows startup context: where the daemon listens, which backend it
// syncs against and what is still missing for a useful run.
func Print(cfg *config.Config, source, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Observe:  http://%s\n", cfg.Addr())
	fmt.Printf("Backend:  %s\n", cfg.Backend.BaseURL)
	if cfg.Backend.WSBaseURL != "" {
		fmt.Printf("Push:     %s\n", cfg.Backend.WSBaseURL)
	} else {
		fmt.Println("Push:     derived from backend URL")
	}
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	if source == "" {
		source = "flags"
	}
	fmt.Printf("Config:   %s\n", source)

	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET /healthz - liveness")
	fmt.Println("GET /v1/groups - group ids with a session")
	fmt.Println("GET /v1/groups/{id}/messages - timeline snapshot")
	fmt.Println("GET /v1/groups/{id}/status - connection state and flags")
	fmt.Println("GET /metrics - Prometheus exposition")
	fmt.Println("GET /docs/ - API docs")

	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl 'http://%s/v1/groups'\n", cfg.Addr())
	fmt.Printf("curl 'http://%s/v1/groups/<id>/messages?limit=10'\n", cfg.Addr())

	fmt.Println("\n== Production? =================================================")
	if cfg.Backend.AccessToken != "" {
		fmt.Println("- Access token: OK")
	} else {
		fmt.Println("- Access token: MISSING (set HUBSYNC_ACCESS_TOKEN)")
	}
	if cfg.Backend.RefreshToken != "" {
		fmt.Println("- Refresh token: OK")
	} else {
		fmt.Println("- Refresh token: MISSING (expired sessions will not recover)")
	}
	if n := len(cfg.Chat.Groups); n > 0 {
		fmt.Printf("- Groups: %d configured (%s)\n", n, strings.Join(cfg.Chat.Groups, ", "))
	} else {
		fmt.Println("- Groups: none configured (sessions start on first API access)")
	}
	if cfg.Retention.Enabled {
		info := ""
		if cfg.Retention.Cron != "" {
			info = "cron=" + cfg.Retention.Cron
		} else if cfg.Retention.Period != "" {
			info = "period=" + cfg.Retention.Period
		}
		if info != "" {
			fmt.Printf("- Retention: enabled (%s)\n", info)
		} else {
			fmt.Println("- Retention: enabled")
		}
	} else {
		fmt.Println("- Retention: disabled (upload records kept until reset)")
	}

	fmt.Println("\n== Logs: =================================================")
}
