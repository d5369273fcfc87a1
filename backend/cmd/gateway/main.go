package main

import (
	"fmt"
	"log"

	"edufiliova/backend/config"
	"edufiliova/backend/internal/gateway"
)

func main() {
	var cfg config.GatewayConfig
	if err := config.Load("gatewayConfig", &cfg); err != nil {
		log.Fatalf("Failed to init config: %v", err)
	}
	log.Printf("config: %+v", cfg)

	r, err := gateway.NewRouter(cfg.Auth.Path, cfg.Realtime.Path)
	if err != nil {
		log.Fatalf("build router: %v", err)
	}
	_ = r.Run(fmt.Sprintf(":%d", cfg.Running.Port))
}
