package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Tumo-Markets/Tumo-MVP/internal/sponsord"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/config"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/logger"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/chain"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/keypair"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/secretstore"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/shutdown"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "配置文件路径")
		listen     = flag.String("listen", ":8787", "监听地址")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		cfg, err = config.Load("")
		if err != nil {
			fatal(err)
		}
	}
	// sponsord 必须在本地持有赞助者密钥
	cfg.Sponsor.Mode = config.SponsorModeLocal
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fatal(err)
	}

	kp, err := loadSponsorKeypair(cfg)
	if err != nil {
		fatal(err)
	}

	srv := sponsord.New(chain.NewClient(cfg.Chain.RPCURL), kp)
	logger.Infof("sponsord 启动，赞助者地址 %s，监听 %s", srv.SponsorAddress(), *listen)

	httpSrv := &http.Server{
		Addr:              *listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	mgr := shutdown.NewManager()
	mgr.OnShutdown(func(ctx context.Context) {
		if err := httpSrv.Shutdown(ctx); err != nil {
			logger.Warnf("HTTP 服务关闭失败: %v", err)
		}
	})

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		mgr.Shutdown(ctx)
	}()

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fatal(err)
	}
	logger.Info("sponsord 已退出")
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}

// loadSponsorKeypair 按 助记词 > 私钥 > 加密凭据库 的顺序装载赞助者密钥
func loadSponsorKeypair(cfg *config.Config) (*keypair.Keypair, error) {
	sp := cfg.Sponsor
	if sp.Mnemonic != "" {
		return keypair.FromMnemonic(sp.Mnemonic)
	}
	if sp.PrivateKey != "" {
		return keypair.FromPrivateKeyString(sp.PrivateKey)
	}
	if strings.TrimSpace(sp.StorePath) == "" {
		return nil, fmt.Errorf("需要 sponsor.mnemonic、sponsor.private_key 或 sponsor.store_path 之一")
	}

	encKey, err := secretstore.ParseKey(os.Getenv("TUMO_STORE_KEY"))
	if err != nil {
		return nil, err
	}
	store, err := secretstore.Open(secretstore.OpenOptions{
		Path:          sp.StorePath,
		EncryptionKey: encKey,
		ReadOnly:      true,
	})
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if mn, ok, err := store.SponsorMnemonic(); err != nil {
		return nil, err
	} else if ok {
		return keypair.FromMnemonic(mn)
	}
	if pk, ok, err := store.SponsorPrivateKey(); err != nil {
		return nil, err
	} else if ok {
		return keypair.FromPrivateKeyString(pk)
	}
	return nil, fmt.Errorf("凭据库 %s 中没有赞助者助记词或私钥", sp.StorePath)
}
