// Command timerwatch показывает живые таймеры в терминале и управляет ими.
//
// Команды вводятся построчно: "p ID" пауза, "r ID" продолжить, "x ID" сброс,
// "d ID" удалить, "l" перечитать страницу, "q" выход.
//
// Задачи: "t" список незавершенных, "s ID" отметить задачу, "g ГРУППА" отметить
// всю группу, "i ID" подробности, "b complete|delete|due ДАТА|recur ТИП"
// массовое действие над отмеченными.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/region23/servicedesk/internal/config"
	"github.com/region23/servicedesk/internal/engine"
	"github.com/region23/servicedesk/internal/panel"
	"github.com/region23/servicedesk/pkg/logger"
)

type options struct {
	url   string
	token string
	clear bool
}

func main() {
	var opts options

	cmd := &cobra.Command{
		Use:          "timerwatch",
		Short:        "Живые таймеры и задачи сервис-деска в терминале",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", "", "адрес сервера (по умолчанию http://localhost:PORT)")
	cmd.Flags().StringVar(&opts.token, "token", "", "токен администратора (по умолчанию ADMIN_TOKEN)")
	cmd.Flags().BoolVar(&opts.clear, "clear", false, "очищать экран перед каждым выводом")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.url == "" {
		opts.url = "http://localhost:" + cfg.Server.Port
	}
	if opts.token == "" {
		opts.token = cfg.Server.AdminToken
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	// stdout занят табло
	log := logger.NewWithWriter(os.Stderr, level, true)

	loc, err := cfg.Timers.Location()
	if err != nil {
		return err
	}

	clock := clockwork.NewRealClock()
	client := engine.NewHTTPClient(opts.url, opts.token, cfg.Timers.RequestTimeout)
	board := newTaskBoard(panel.NewHTTPSource(opts.url, opts.token, cfg.Timers.RequestTimeout), loc, os.Stderr)

	registry := engine.NewRegistry(clock, engine.NewTextRenderer(os.Stdout, opts.clear), log)
	registry.SetInterval(cfg.Timers.TickInterval)
	defer registry.StopTicking()

	load := func(ctx context.Context) error {
		records, problems, err := client.FetchPage(ctx, "/timers")
		if err != nil {
			return err
		}
		for _, p := range problems {
			log.Warn("Skipped malformed timer", logger.Error(p))
		}
		registry.Initialize(records)
		registry.StartTicking()
		return nil
	}
	if err := load(ctx); err != nil {
		return err
	}

	wsURL, err := liveURL(opts.url)
	if err != nil {
		return err
	}
	watcher := engine.NewWatcher(wsURL, registry, clock, log)
	if opts.token != "" {
		watcher.Header.Set("Authorization", "Bearer "+opts.token)
	}
	watcher.Resync = load
	go watcher.Run(ctx)

	input := bufio.NewScanner(os.Stdin)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for input.Scan() {
			select {
			case lines <- input.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	dispatcher := engine.NewDispatcher(registry, client,
		&promptConfirmer{lines: lines, out: os.Stderr},
		stderrAlerter{w: os.Stderr},
		log,
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := execute(ctx, line, dispatcher, board, load, log); quit {
				return nil
			}
		}
	}
}

var commands = map[string]engine.Action{
	"p": engine.ActionPause,
	"r": engine.ActionResume,
	"x": engine.ActionReset,
	"d": engine.ActionDelete,
}

// execute выполняет одну команду; true означает выход
func execute(ctx context.Context, line string, d *engine.Dispatcher, board *taskBoard, load func(context.Context) error, log *logger.Logger) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "q":
		return true
	case "l":
		if err := load(ctx); err != nil {
			log.Warn("Reload failed", logger.Error(err))
		}
		return false
	}

	if handled, err := executeTask(ctx, fields, board); handled {
		if err != nil {
			fmt.Fprintln(os.Stderr, "!", err)
		}
		return false
	}

	action, ok := commands[fields[0]]
	if !ok || len(fields) != 2 {
		fmt.Fprintln(os.Stderr, "команды: p|r|x|d ID, l, q; задачи: t, s ID, g ГРУППА, i ID, b ДЕЙСТВИЕ")
		return false
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintln(os.Stderr, "некорректный ID таймера")
		return false
	}

	// ошибки уже показаны через Alerter
	if err := d.Do(ctx, action, id); err != nil {
		log.Debug("Action failed", logger.String("action", string(action)), logger.Int64("timer_id", id), logger.Error(err))
	}
	return false
}

// liveURL строит адрес websocket ленты из адреса сервера
func liveURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/timers"
	return u.String(), nil
}

// promptConfirmer спрашивает подтверждение в терминале. Ответ берется из того же
// потока строк, что и команды, поэтому вызывается только из цикла команд.
type promptConfirmer struct {
	lines <-chan string
	out   io.Writer
}

func (c *promptConfirmer) Confirm(ctx context.Context, action engine.Action, rec engine.Record) bool {
	label := rec.Label
	if label == "" {
		label = "#" + strconv.FormatInt(rec.ID, 10)
	}
	fmt.Fprintf(c.out, "%s таймер %s? [y/N] ", action, label)
	var line string
	select {
	case l, ok := <-c.lines:
		if !ok {
			return false
		}
		line = l
	case <-ctx.Done():
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes" || answer == "д" || answer == "да"
}

type stderrAlerter struct {
	w io.Writer
}

func (a stderrAlerter) Alert(message string) {
	fmt.Fprintln(a.w, "!", message)
}
