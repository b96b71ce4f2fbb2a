package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Sponsor.Mode != SponsorModeRemote {
		t.Fatalf("默认 sponsor.mode got=%s want=remote", cfg.Sponsor.Mode)
	}
	if cfg.Sponsor.GasCoinType == "" {
		t.Fatal("默认 gas_coin_type 不能为空")
	}
	if cfg.Contracts.ClockID == "" {
		t.Fatal("默认 clock_id 不能为空")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	// remote 模式缺赞助者地址
	if err := cfg.Validate(); err == nil {
		t.Fatal("remote 模式缺 address 应该校验失败")
	}
	cfg.Sponsor.Address = "0xabc"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}

	// local 模式缺凭据来源
	cfg.Sponsor.Mode = SponsorModeLocal
	if err := cfg.Validate(); err == nil {
		t.Fatal("local 模式缺凭据应该校验失败")
	}
	cfg.Sponsor.StorePath = "data/store"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}

	cfg.Sponsor.Mode = "nonsense"
	if err := cfg.Validate(); err == nil {
		t.Fatal("未知 mode 应该校验失败")
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
chain:
  rpc_url: https://node.example.com
  gas_budget: 123
sponsor:
  mode: remote
  address: "0xfeed"
backend:
  base_url: https://api.example.com/api/v1
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TUMO_GAS_BUDGET", "999")
	t.Setenv("TUMO_SPONSOR_ADDRESS", "0xenv")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Chain.RPCURL != "https://node.example.com" {
		t.Fatalf("rpc_url got=%s", cfg.Chain.RPCURL)
	}
	// 环境变量覆盖 YAML
	if cfg.Chain.GasBudget != 999 {
		t.Fatalf("gas_budget got=%d want=999", cfg.Chain.GasBudget)
	}
	if cfg.Sponsor.Address != "0xenv" {
		t.Fatalf("sponsor.address got=%s want=0xenv", cfg.Sponsor.Address)
	}
	// 未覆盖的字段保持默认
	if cfg.Backend.WSURL == "" {
		t.Fatal("ws_url 应该保留默认值")
	}
}

func TestLoadInvalidConfigFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
sponsor:
  mode: local
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("local 模式缺凭据的配置应该加载失败")
	}
}
