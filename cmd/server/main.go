package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"modl/pkg/api"
	"modl/pkg/config"
	"modl/pkg/core"
	"modl/pkg/network"
)

// main 是 MODL 服务器的入口：加载配置，启动 TCP 二进制协议与 HTTP API。
func main() {
	configPath := flag.String("config", "", "Path to YAML config (default: configs/modl.yaml or modl.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[MODL] Failed to load config: %v", err)
	}

	engine, err := core.NewEngine(cfg)
	if err != nil {
		log.Fatalf("[MODL] Failed to start engine: %v", err)
	}

	go func() {
		if err := network.NewTCPServer(engine).Start(cfg.Server.TCPAddr); err != nil {
			log.Fatalf("[TCP] %v", err)
		}
	}()
	go api.NewServer(engine).Start(cfg.Server.Addr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("[MODL] Shutting down...")
	engine.Close()
}
