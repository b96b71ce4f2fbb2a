// sponsor-init 把赞助者助记词或私钥写入加密凭据库，
// 避免在配置文件和环境变量里保存明文凭据。
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tyler-smith/go-bip39"

	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/keypair"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/secretstore"
)

func main() {
	var (
		storePath = flag.String("store", getenv("TUMO_SPONSOR_STORE", "data/sponsor-store"), "凭据库路径")
		kind      = flag.String("kind", "mnemonic", "凭据类型: mnemonic / private-key")
	)
	flag.Parse()

	encKey, err := secretstore.ParseKey(os.Getenv("TUMO_STORE_KEY"))
	if err != nil {
		fatal(err)
	}
	if encKey == nil {
		fatal(errors.New("TUMO_STORE_KEY is required (32 bytes, base64 or hex)"))
	}

	store, err := secretstore.Open(secretstore.OpenOptions{
		Path:          *storePath,
		EncryptionKey: encKey,
	})
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	switch *kind {
	case "mnemonic":
		fmt.Fprintln(os.Stderr, "请输入赞助者助记词（12/15/18/21/24 个单词），输入完成后回车：")
		mn := strings.TrimSpace(readLine())
		if !bip39.IsMnemonicValid(mn) {
			fatal(errors.New("invalid mnemonic"))
		}
		kp, err := keypair.FromMnemonic(mn)
		if err != nil {
			fatal(err)
		}
		if err := store.SetSponsorMnemonic(mn); err != nil {
			fatal(err)
		}
		fmt.Fprintf(os.Stderr, "已写入 %s，赞助者地址: %s\n", *storePath, kp.Address())
	case "private-key":
		fmt.Fprintln(os.Stderr, "请输入赞助者私钥（hex 或 base64），输入完成后回车：")
		pk := strings.TrimSpace(readLine())
		kp, err := keypair.FromPrivateKeyString(pk)
		if err != nil {
			fatal(err)
		}
		if err := store.SetSponsorPrivateKey(pk); err != nil {
			fatal(err)
		}
		fmt.Fprintf(os.Stderr, "已写入 %s，赞助者地址: %s\n", *storePath, kp.Address())
	default:
		fatal(fmt.Errorf("未知的 -kind: %q", *kind))
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func readLine() string {
	br := bufio.NewReader(os.Stdin)
	s, _ := br.ReadString('\n')
	return strings.TrimSpace(s)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
