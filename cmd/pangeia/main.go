package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/estevaoantuness/agentefinal/internal/bus"
	"github.com/estevaoantuness/agentefinal/internal/config"
	"github.com/estevaoantuness/agentefinal/internal/gateway"
)

var rootCmd = &cobra.Command{
	Use:   "pangeia",
	Short: "Pangeia - assistente de tarefas por WhatsApp e Telegram",
}

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the full gateway (channels + reminders + digest)",
	RunE:  runGateway,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to Pangeia locally, single message or REPL mode",
	RunE:  runChat,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and data directories",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pangeia status",
	RunE:  runStatus,
}

var messageFlag string

func init() {
	chatCmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Single message to send")
	rootCmd.AddCommand(gatewayCmd, chatCmd, onboardCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Provider.APIKey == "" {
		return fmt.Errorf("API key not set. Run 'pangeia onboard' or set PANGEIA_API_KEY / OPENAI_API_KEY")
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	return gw.Run(context.Background())
}

// ChatOptions carries injectable dependencies for chat mode tests.
type ChatOptions struct {
	Gateway *gateway.Gateway
	Stdin   io.Reader
	Stdout  io.Writer
}

func runChat(cmd *cobra.Command, args []string) error {
	return runChatWithOptions(ChatOptions{})
}

func runChatWithOptions(opts ChatOptions) error {
	gw := opts.Gateway
	if gw == nil {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.Provider.APIKey == "" {
			return fmt.Errorf("API key not set. Run 'pangeia onboard' or set PANGEIA_API_KEY / OPENAI_API_KEY")
		}

		// Chat mode never touches the messaging channels, so build the
		// gateway as if none were configured.
		local := *cfg
		local.Channels = config.ChannelsConfig{}

		gw, err = gateway.New(&local)
		if err != nil {
			return fmt.Errorf("create gateway: %w", err)
		}
		defer gw.Shutdown()
	}

	stdin := opts.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	ctx := context.Background()

	name := os.Getenv("USER")
	if name == "" {
		name = "voce"
	}

	// Single message mode
	if messageFlag != "" {
		fmt.Fprintln(stdout, gw.Handle(ctx, cliMessage(name, messageFlag)))
		return nil
	}

	// REPL mode
	fmt.Fprintln(stdout, "pangeia chat (digite 'sair' para encerrar)")
	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "sair" || input == "exit" || input == "quit" {
			break
		}

		fmt.Fprintln(stdout, gw.Handle(ctx, cliMessage(name, input)))
	}
	return nil
}

func cliMessage(name, content string) bus.InboundMessage {
	return bus.InboundMessage{
		Channel:    "cli",
		SenderID:   "local",
		SenderName: name,
		ChatID:     "local",
		Content:    content,
		Timestamp:  time.Now(),
	}
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(filepath.Join(cfgDir, "data"), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	templatesPath := filepath.Join(cfgDir, "templates.yaml")
	if _, err := os.Stat(templatesPath); os.IsNotExist(err) {
		if err := os.WriteFile(templatesPath, []byte(defaultTemplatesYAML), 0644); err != nil {
			return fmt.Errorf("write templates: %w", err)
		}
		fmt.Printf("Created templates: %s\n", templatesPath)
	}

	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set your API key and channel tokens\n", cfgPath)
	fmt.Println("  2. Or set PANGEIA_API_KEY / PANGEIA_TELEGRAM_TOKEN environment variables")
	fmt.Println("  3. Run 'pangeia chat -m \"oi\"' to test locally")
	fmt.Println("  4. Run 'pangeia gateway' to go live")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Model: %s\n", cfg.Agent.Model)
	fmt.Printf("Timezone: %s\n", cfg.Agent.Timezone)
	if cfg.Provider.APIKey != "" && len(cfg.Provider.APIKey) > 8 {
		masked := cfg.Provider.APIKey[:4] + "..." + cfg.Provider.APIKey[len(cfg.Provider.APIKey)-4:]
		fmt.Printf("API Key: %s\n", masked)
	} else if cfg.Provider.APIKey != "" {
		fmt.Println("API Key: set")
	} else {
		fmt.Println("API Key: not set")
	}
	fmt.Printf("Telegram: enabled=%v\n", cfg.Channels.Telegram.Enabled)
	fmt.Printf("WhatsApp: enabled=%v\n", cfg.Channels.WhatsApp.Enabled)
	fmt.Printf("Notion sync: enabled=%v\n", cfg.Notion.Enabled)
	fmt.Printf("Daily digest: enabled=%v hour=%d\n", cfg.Digest.Enabled, cfg.Digest.Hour)

	dbPath := strings.TrimSpace(cfg.Store.DBPath)
	if dbPath == "" {
		dbPath = filepath.Join(config.ConfigDir(), "data", "tasks.db")
	}
	if fi, err := os.Stat(dbPath); err == nil {
		fmt.Printf("Task DB: %s (%d bytes)\n", dbPath, fi.Size())
	} else {
		fmt.Printf("Task DB: %s (not created yet)\n", dbPath)
	}

	return nil
}

const defaultTemplatesYAML = `# Response templates. Each event holds weighted variants; %s and %d are
# filled positionally. Edits are picked up live by the gateway.
#
# task_created:
#   - text: "Anotado: %s"
#     weight: 2
#   - text: "Beleza, criei a tarefa %s!"
#     weight: 1
`
