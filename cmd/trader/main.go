package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Tumo-Markets/Tumo-MVP/internal/trading"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/config"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/logger"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/backend"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/chain"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/feed"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/keypair"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/notify"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/sponsor"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/secretstore"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/shutdown"
)

const usage = `用法: trader <命令> [选项]

命令:
  markets              列出市场
  balances             查询钱包余额
  preview              预览开仓（-market -side -size -leverage）
  open                 开仓（-market -side -size -leverage）
  close                平仓（-market -position）
  watch                订阅实时行情（-market [-user]）
`

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "配置文件路径")
		marketID   = flag.String("market", "", "市场 ID")
		side       = flag.String("side", "long", "方向: long / short")
		size       = flag.String("size", "", "仓位大小（抵押币种显示单位）")
		leverage   = flag.Uint64("leverage", 1, "杠杆倍数")
		positionID = flag.String("position", "", "仓位对象 ID（平仓用）")
		userAddr   = flag.String("user", "", "用户地址（watch 订阅仓位流用）")
	)
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	command := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		// 配置文件缺失时退回默认配置加环境变量
		cfg, err = config.Load("")
		if err != nil {
			fatal(err)
		}
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

	chainClient := chain.NewClient(cfg.Chain.RPCURL)
	backendClient := backend.NewClient(cfg.Backend.BaseURL)

	mgr := shutdown.NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		cancel()
		shutdownCtx, c := context.WithTimeout(context.Background(), 10*time.Second)
		defer c()
		mgr.Shutdown(shutdownCtx)
		os.Exit(130)
	}()

	switch command {
	case "markets":
		err = runMarkets(ctx, backendClient)
	case "balances":
		err = runBalances(ctx, cfg, chainClient)
	case "preview":
		err = runPreview(ctx, cfg, chainClient, backendClient, *marketID, *side, *size, *leverage)
	case "open":
		err = runOpen(ctx, cfg, chainClient, backendClient, *marketID, *side, *size, *leverage)
	case "close":
		err = runClose(ctx, cfg, chainClient, backendClient, *marketID, *positionID, *side)
	case "watch":
		err = runWatch(ctx, cfg, mgr, *marketID, *userAddr)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}

// userWallet 从环境变量装载用户签名身份
func userWallet(chainClient *chain.Client) (*trading.LocalWallet, error) {
	if mn := strings.TrimSpace(os.Getenv("TUMO_WALLET_MNEMONIC")); mn != "" {
		kp, err := keypair.FromMnemonic(mn)
		if err != nil {
			return nil, err
		}
		return trading.NewLocalWallet(kp, chainClient), nil
	}
	if pk := strings.TrimSpace(os.Getenv("TUMO_WALLET_PRIVATE_KEY")); pk != "" {
		kp, err := keypair.FromPrivateKeyString(pk)
		if err != nil {
			return nil, err
		}
		return trading.NewLocalWallet(kp, chainClient), nil
	}
	return nil, fmt.Errorf("未设置 TUMO_WALLET_MNEMONIC 或 TUMO_WALLET_PRIVATE_KEY")
}

// sponsorSigner 按 local 模式配置装载赞助者密钥：
// 助记词 > 私钥 > 加密凭据库
func sponsorSigner(cfg *config.Config) (*keypair.Keypair, error) {
	sp := cfg.Sponsor
	if sp.Mnemonic != "" {
		return keypair.FromMnemonic(sp.Mnemonic)
	}
	if sp.PrivateKey != "" {
		return keypair.FromPrivateKeyString(sp.PrivateKey)
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

func newCoordinator(cfg *config.Config, chainClient *chain.Client, backendClient *backend.Client) (*sponsor.Coordinator, error) {
	if cfg.Sponsor.Mode == config.SponsorModeLocal {
		kp, err := sponsorSigner(cfg)
		if err != nil {
			return nil, err
		}
		return sponsor.NewLocal(chainClient, kp, cfg.Sponsor.GasCoinType, cfg.Chain.GasPrice, cfg.Chain.GasBudget), nil
	}
	return sponsor.NewRemote(chainClient, backendClient, cfg.Sponsor.Address,
		cfg.Sponsor.GasCoinType, cfg.Chain.GasPrice, cfg.Chain.GasBudget), nil
}

func newService(cfg *config.Config, chainClient *chain.Client, backendClient *backend.Client) (*trading.Service, error) {
	coord, err := newCoordinator(cfg, chainClient, backendClient)
	if err != nil {
		return nil, err
	}
	coord.OnStateChange(func(s sponsor.State) {
		fmt.Printf("  状态: %s\n", s)
	})
	onStatus := func(st notify.Status) {
		switch st.Phase {
		case notify.PhaseLoading:
			fmt.Println("提交中...")
		case notify.PhaseSuccess:
			fmt.Println("✅", st.Message)
		case notify.PhaseError:
			fmt.Println("❌", st.Message)
		}
	}
	return trading.NewService(chainClient, backendClient, coord, cfg.Contracts, onStatus), nil
}

func runMarkets(ctx context.Context, backendClient *backend.Client) error {
	page, err := backendClient.ListMarkets(ctx, 1, 50)
	if err != nil {
		return err
	}
	fmt.Printf("共 %d 个市场:\n", page.Total)
	for _, m := range page.Items {
		fmt.Printf("  %-12s %-10s 最大杠杆 %-4s 状态 %s\n", m.MarketID, m.Symbol, m.MaxLeverage, m.Status)
	}
	return nil
}

func runBalances(ctx context.Context, cfg *config.Config, chainClient *chain.Client) error {
	wallet, err := userWallet(chainClient)
	if err != nil {
		return err
	}
	fmt.Println("地址:", wallet.Address())
	balances, err := wallet.Balances(ctx)
	if err != nil {
		return err
	}
	for sym, bal := range balances {
		fmt.Printf("  %-6s %s\n", sym, bal.String())
	}
	return nil
}

func parseOpenRequest(marketID, side, size string, leverage uint64) (trading.OpenRequest, error) {
	if strings.TrimSpace(marketID) == "" {
		return trading.OpenRequest{}, fmt.Errorf("-market 不能为空")
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(size))
	if err != nil {
		return trading.OpenRequest{}, fmt.Errorf("无效的 -size: %w", err)
	}
	return trading.OpenRequest{MarketID: marketID, Side: side, Size: amount, Leverage: leverage}, nil
}

func runPreview(ctx context.Context, cfg *config.Config, chainClient *chain.Client, backendClient *backend.Client, marketID, side, size string, leverage uint64) error {
	req, err := parseOpenRequest(marketID, side, size, leverage)
	if err != nil {
		return err
	}
	svc, err := newService(cfg, chainClient, backendClient)
	if err != nil {
		return err
	}
	defer svc.Close()

	data, err := svc.Preview(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s  大小 %s  杠杆 %s\n", data.Symbol, data.Side, data.Size, data.Leverage)
	fmt.Printf("  入场价:   %s\n", data.EntryPrice)
	fmt.Printf("  所需抵押: %s\n", data.CollateralRequired)
	fmt.Printf("  强平价:   %s\n", data.LiquidationPrice)
	fmt.Printf("  预估费用: %s\n", data.EstimatedFees)
	return nil
}

func runOpen(ctx context.Context, cfg *config.Config, chainClient *chain.Client, backendClient *backend.Client, marketID, side, size string, leverage uint64) error {
	req, err := parseOpenRequest(marketID, side, size, leverage)
	if err != nil {
		return err
	}
	wallet, err := userWallet(chainClient)
	if err != nil {
		return err
	}
	svc, err := newService(cfg, chainClient, backendClient)
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.OpenPosition(ctx, wallet, req)
	if err != nil {
		return err
	}
	fmt.Println("交易摘要:", res.Digest)
	return nil
}

func runClose(ctx context.Context, cfg *config.Config, chainClient *chain.Client, backendClient *backend.Client, marketID, positionID, side string) error {
	if strings.TrimSpace(positionID) == "" {
		return fmt.Errorf("-position 不能为空")
	}
	wallet, err := userWallet(chainClient)
	if err != nil {
		return err
	}
	svc, err := newService(cfg, chainClient, backendClient)
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.ClosePosition(ctx, wallet, trading.CloseRequest{
		MarketID:   marketID,
		PositionID: positionID,
		Side:       side,
	})
	if err != nil {
		return err
	}
	fmt.Println("交易摘要:", res.Digest)
	return nil
}

func runWatch(ctx context.Context, cfg *config.Config, mgr *shutdown.Manager, marketID, userAddr string) error {
	if strings.TrimSpace(marketID) == "" {
		return fmt.Errorf("-market 不能为空")
	}

	pool := feed.NewPool(cfg.Backend.WSURL, feed.DefaultReconnectPolicy())
	mgr.OnShutdown(func(context.Context) { pool.Shutdown() })
	defer pool.Shutdown()

	statsSub, err := pool.Subscribe(feed.StatsKey(marketID))
	if err != nil {
		return err
	}
	defer statsSub.Unsubscribe()

	subs := []<-chan feed.Message{statsSub.Updates()}
	if strings.TrimSpace(userAddr) != "" {
		posSub, err := pool.Subscribe(feed.PositionsKey(userAddr))
		if err != nil {
			return err
		}
		defer posSub.Unsubscribe()
		subs = append(subs, posSub.Updates())
	}

	fmt.Printf("订阅市场 %s 实时数据，Ctrl-C 退出\n", marketID)
	merged := make(chan feed.Message, 16)
	for _, ch := range subs {
		go func(ch <-chan feed.Message) {
			for m := range ch {
				merged <- m
			}
		}(ch)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-merged:
			if stats, ok := feed.DecodeMarketStats(msg); ok {
				fmt.Printf("[%s] 标记价 %s  24h量 %s  资金费率 %s\n",
					stats.Symbol, stats.MarkPrice, stats.Volume24h, stats.CurrentFundingRate)
				continue
			}
			if positions, ok := feed.DecodePositions(msg); ok {
				for _, p := range positions {
					fmt.Printf("仓位 %s %s %s  未实现盈亏 %s  强平价 %s\n",
						p.Symbol, p.Side, p.Size, p.UnrealizedPnl, p.LiquidationPrice)
				}
			}
		}
	}
}
