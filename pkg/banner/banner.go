package banner

import (
	"fmt"

	"chatrelay/pkg/config"
)

const banner = `
 ██████╗██╗  ██╗ █████╗ ████████╗██████╗ ███████╗██╗      █████╗ ██╗   ██╗
██╔════╝██║  ██║██╔══██╗╚══██╔══╝██╔══██╗██╔════╝██║     ██╔══██╗╚██╗ ██╔╝
██║     ███████║███████║   ██║   ██████╔╝█████╗  ██║     ███████║ ╚████╔╝
██║     ██╔══██║██╔══██║   ██║   ██╔══██╗██╔══╝  ██║     ██╔══██║  ╚██╔╝
╚██████╗██║  ██║██║  ██║   ██║   ██║  ██║███████╗███████╗██║  ██║   ██║
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   ╚═╝  ╚═╝╚══════╝╚══════╝╚═╝  ╚═╝   ╚═╝
`

// PrintWithEff prints the startup banner with the effective config and
// a short production-readiness checklist.
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	dbPath := eff.DBPath
	if dbPath == "" && eff.Config != nil {
		dbPath = eff.Config.Server.DBPath
	}
	src := eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config:   %s\n", src)

	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET  /ws?token=<jwt>                  - realtime socket (send-message, typing, messageRead, ...)")
	fmt.Println("GET  /v1/users/{id}/chats             - chat summaries for a user")
	fmt.Println("GET  /v1/users/{id}/unread            - unread snapshot for a user")
	fmt.Println("GET  /v1/presence/online              - currently online user ids")
	fmt.Println("GET  /metrics                         - prometheus metrics")

	fmt.Println("\n== Production? =================================================")
	secrets := 0
	verifier := ""
	tlsOK := false
	sweepOn := false
	sweepCron := ""
	if eff.Config != nil {
		secrets = len(eff.Config.Security.SigningSecrets)
		verifier = eff.Config.Security.VerifierURL
		tlsOK = eff.Config.Server.TLS.CertFile != "" && eff.Config.Server.TLS.KeyFile != ""
		sweepOn = eff.Config.Sweep.Enabled
		sweepCron = eff.Config.Sweep.Cron
	}
	if secrets > 0 {
		fmt.Printf("- Signing secrets: OK (%d)\n", secrets)
	} else {
		fmt.Println("- Signing secrets: MISSING (required to verify handshake tokens)")
	}
	if verifier != "" {
		fmt.Printf("- External verifier: %s\n", verifier)
	} else {
		fmt.Println("- External verifier: unconfigured (local verification only)")
	}
	if tlsOK {
		fmt.Println("- TLS: configured")
	} else {
		fmt.Println("- TLS: unconfigured")
	}
	if dbPath != "" {
		fmt.Printf("- DB Path: %s\n", dbPath)
	} else {
		fmt.Println("- DB Path: not set (use --db or CHATRELAY_DB_PATH)")
	}
	if sweepOn {
		if sweepCron != "" {
			fmt.Printf("- Sweep: enabled (cron=%s)\n", sweepCron)
		} else {
			fmt.Println("- Sweep: enabled")
		}
	} else {
		fmt.Println("- Sweep: disabled")
	}

	fmt.Println("\n== Logs: =================================================")
}
