package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/urfave/cli/v3"

	wsclient "github.com/dohr-michael/ruleflow/clients/ws"
	"github.com/dohr-michael/ruleflow/internal/events"
)

func gatewayFlag() cli.Flag {
	return &cli.StringFlag{Name: "gateway", Usage: "Gateway URL (default from config)"}
}

// NewWatchCommand returns the watch subcommand.
func NewWatchCommand() *cli.Command {
	return &cli.Command{
		Name:   "watch",
		Usage:  "Stream live events from a running server",
		Flags:  []cli.Flag{gatewayFlag()},
		Action: runWatch,
	}
}

// NewAnswerCommand returns the answer subcommand.
func NewAnswerCommand() *cli.Command {
	return &cli.Command{
		Name:  "answer",
		Usage: "Press a button on an open dialog",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "dialog"},
			&cli.StringArg{Name: "button"},
		},
		Flags:  []cli.Flag{gatewayFlag()},
		Action: runAnswer,
	}
}

func dialGateway(ctx context.Context, cmd *cli.Command) (*wsclient.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	base := gatewayURL(cfg)
	if cmd.IsSet("gateway") {
		base = cmd.String("gateway")
	}
	url := "ws" + strings.TrimPrefix(base, "http") + "/api/ws"

	client, err := wsclient.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to gateway: %w", err)
	}
	return client, nil
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	client, err := dialGateway(ctx, cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	fmt.Println("Watching events, Ctrl-C to stop.")
	for {
		f, err := client.ReadFrame()
		if err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) != -1 {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		e, err := wsclient.DecodeEvent(f)
		if err != nil {
			continue
		}
		printEvent(e)
	}
}

func printEvent(e events.Event) {
	fmt.Printf("%s  %-16s %s\n", e.Timestamp.Format(time.TimeOnly), e.Type, summarize(e.Payload))
	if p, ok := events.GetDialogOpenedPayload(e); ok && len(p.Buttons) > 0 {
		fmt.Printf("          answer with: ruleflow answer %s %q\n", p.DialogID, p.Buttons[0])
	}
}

func runAnswer(ctx context.Context, cmd *cli.Command) error {
	dialogID, button := cmd.StringArg("dialog"), cmd.StringArg("button")
	if dialogID == "" || button == "" {
		return errors.New("dialog id and button label are required")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := dialGateway(ctx, cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	id, err := client.AnswerDialog(dialogID, button)
	if err != nil {
		return fmt.Errorf("send answer: %w", err)
	}
	if _, err := client.Await(id, nil); err != nil {
		return err
	}
	fmt.Printf("Pressed %q on %s.\n", button, dialogID)
	return nil
}
