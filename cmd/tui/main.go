package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/zhouzirui/cat-chatroom/internal/config"
	"github.com/zhouzirui/cat-chatroom/internal/model/persona"
	"github.com/zhouzirui/cat-chatroom/internal/service/ai"
	"github.com/zhouzirui/cat-chatroom/internal/service/chat"
	"github.com/zhouzirui/cat-chatroom/internal/service/turn"
	"github.com/zhouzirui/cat-chatroom/internal/ui/terminal"
)

func main() {
	name := flag.String("name", "", "小猫的名字，默认使用 PERSONA_NAME")
	logPath := flag.String("log", "cat-chatroom.log", "日志文件路径，终端界面运行时日志不会输出到屏幕")
	flag.Parse()

	logFile, err := tea.LogToFile(*logPath, "tui")
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法打开日志文件: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	cat, err := persona.Load(cfg.Persona.File, cfg.Persona.Name)
	if err != nil {
		log.Fatalf("persona 加载失败: %v", err)
	}

	chats := chat.NewService(cat)
	turns := turn.New(cat, ai.NewCompleter(ctx, cfg.AI), turn.Config{
		Interval:  cfg.Reveal.Interval,
		Cursor:    cfg.Reveal.Cursor,
		Streaming: cfg.AI.StreamResponse,
	})

	state, _ := chats.Initialize(ctx, "", *name)
	model := terminal.New(ctx, chats, turns, state)

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	model.Attach(p)

	if _, err := p.Run(); err != nil {
		log.Printf("终端界面退出: %v", err)
		os.Exit(1)
	}
}
