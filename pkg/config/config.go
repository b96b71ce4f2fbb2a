package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SponsorMode 赞助者签名模式
type SponsorMode string

const (
	// SponsorModeLocal 本地持有赞助者私钥，进程内签名并提交
	SponsorModeLocal SponsorMode = "local"
	// SponsorModeRemote 把交易字节和用户签名交给后端 sponsor_gas 接口，由后端签名并提交
	SponsorModeRemote SponsorMode = "remote"
)

// ChainConfig 链节点配置
type ChainConfig struct {
	RPCURL    string `yaml:"rpc_url"`
	GasBudget uint64 `yaml:"gas_budget"` // 0 表示由节点估算
	GasPrice  uint64 `yaml:"gas_price"`
}

// BackendConfig 交易后端配置
type BackendConfig struct {
	BaseURL string `yaml:"base_url"` // REST 根地址，例如 https://backend-product.futstar.fun/api/v1
	WSURL   string `yaml:"ws_url"`   // WebSocket 根地址，例如 wss://backend-product.futstar.fun/api/v1/ws
}

// SponsorConfig 赞助者（代付 gas）配置
//
// 生产环境禁止把助记词/私钥打包进客户端二进制：local 模式只应该用于
// sponsord 这类受信任进程，remote 模式是客户端的默认选择。
type SponsorConfig struct {
	Mode        SponsorMode `yaml:"mode"`
	Address     string      `yaml:"address"`     // remote 模式下用于查询赞助者 gas coin
	Mnemonic    string      `yaml:"mnemonic"`    // local 模式：助记词（优先）
	PrivateKey  string      `yaml:"private_key"` // local 模式：私钥（助记词为空时使用）
	StorePath   string      `yaml:"store_path"`  // local 模式：加密凭据库路径（两者都为空时使用）
	GasCoinType string      `yaml:"gas_coin_type"`
}

// ContractsConfig 链上对象配置（按市场覆盖，留空则用后端 /markets 返回的引用）
type ContractsConfig struct {
	PackageID       string `yaml:"package_id"`
	LiquidityPoolID string `yaml:"liquidity_pool_id"`
	ClockID         string `yaml:"clock_id"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Config 应用配置
type Config struct {
	Chain     ChainConfig     `yaml:"chain"`
	Backend   BackendConfig   `yaml:"backend"`
	Sponsor   SponsorConfig   `yaml:"sponsor"`
	Contracts ContractsConfig `yaml:"contracts"`
	Log       LogConfig       `yaml:"log"`
}

// Default 返回带默认值的配置
func Default() *Config {
	return &Config{
		Chain: ChainConfig{
			RPCURL:    "https://fullnode.testnet.sui.io:443",
			GasBudget: 0,
			GasPrice:  0,
		},
		Backend: BackendConfig{
			BaseURL: "https://backend-product.futstar.fun/api/v1",
			WSURL:   "wss://backend-product.futstar.fun/api/v1/ws",
		},
		Sponsor: SponsorConfig{
			Mode:        SponsorModeRemote,
			GasCoinType: "0x0000000000000000000000000000000000000000000000000000000000000002::oct::OCT",
		},
		Contracts: ContractsConfig{
			ClockID: "0x0000000000000000000000000000000000000000000000000000000000000006",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// Load 加载配置：默认值 <- YAML 文件（可选）<- 环境变量
// 会先尝试加载 .env（不存在则忽略）
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	setStr := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setUint := func(dst *uint64, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			if n, err := strconv.ParseUint(v, 10, 64); err == nil {
				*dst = n
			}
		}
	}

	setStr(&c.Chain.RPCURL, "TUMO_RPC_URL")
	setUint(&c.Chain.GasBudget, "TUMO_GAS_BUDGET")
	setUint(&c.Chain.GasPrice, "TUMO_GAS_PRICE")

	setStr(&c.Backend.BaseURL, "TUMO_BACKEND_URL")
	setStr(&c.Backend.WSURL, "TUMO_BACKEND_WS_URL")

	if v := strings.TrimSpace(os.Getenv("TUMO_SPONSOR_MODE")); v != "" {
		c.Sponsor.Mode = SponsorMode(v)
	}
	setStr(&c.Sponsor.Address, "TUMO_SPONSOR_ADDRESS")
	setStr(&c.Sponsor.Mnemonic, "TUMO_SPONSOR_MNEMONIC")
	setStr(&c.Sponsor.PrivateKey, "TUMO_SPONSOR_PRIVATE_KEY")
	setStr(&c.Sponsor.StorePath, "TUMO_SPONSOR_STORE")
	setStr(&c.Sponsor.GasCoinType, "TUMO_GAS_COIN_TYPE")

	setStr(&c.Contracts.PackageID, "TUMO_PACKAGE_ID")
	setStr(&c.Contracts.LiquidityPoolID, "TUMO_LIQUIDITY_POOL_ID")
	setStr(&c.Contracts.ClockID, "TUMO_CLOCK_ID")

	setStr(&c.Log.Level, "TUMO_LOG_LEVEL")
	setStr(&c.Log.File, "TUMO_LOG_FILE")
}

// Validate 校验配置
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Chain.RPCURL) == "" {
		return fmt.Errorf("chain.rpc_url 不能为空")
	}
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return fmt.Errorf("backend.base_url 不能为空")
	}
	switch c.Sponsor.Mode {
	case SponsorModeLocal:
		if c.Sponsor.Mnemonic == "" && c.Sponsor.PrivateKey == "" && c.Sponsor.StorePath == "" {
			return fmt.Errorf("sponsor.mode=local 需要 mnemonic、private_key 或 store_path 之一")
		}
	case SponsorModeRemote:
		if strings.TrimSpace(c.Sponsor.Address) == "" {
			return fmt.Errorf("sponsor.mode=remote 需要 sponsor.address（用于查询 gas coin）")
		}
	default:
		return fmt.Errorf("未知的 sponsor.mode: %q（支持 local / remote）", c.Sponsor.Mode)
	}
	if strings.TrimSpace(c.Sponsor.GasCoinType) == "" {
		return fmt.Errorf("sponsor.gas_coin_type 不能为空")
	}
	return nil
}
