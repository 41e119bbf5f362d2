package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"minimarket-copilot/internal/app"
	"minimarket-copilot/internal/voice"

	"github.com/google/uuid"
)

var errExit = errors.New("exit")

// Console is an interactive clerk terminal. Free text runs a voice turn as if
// it had been spoken; slash commands read the catalog without the model.
type Console struct {
	svc     app.ApplicationService
	store   app.StoreRequest
	locale  string
	out     io.Writer
	session *uuid.UUID
}

func NewConsole(svc app.ApplicationService, store app.StoreRequest, locale string, out io.Writer) *Console {
	return &Console{svc: svc, store: store, locale: locale, out: out}
}

// Run reads lines from reader until EOF or /exit.
func (c *Console) Run(ctx context.Context, reader *bufio.Reader) {
	fmt.Fprintln(c.out, "Minimarket Copilot")
	fmt.Fprintf(c.out, "Store: %s\n", c.store.StoreID)
	fmt.Fprintln(c.out, "Di lo que necesitas (\"agrega 5 cocas\"), o usa /help para ver comandos.")
	fmt.Fprintln(c.out, strings.Repeat("-", 70))

	for {
		fmt.Fprint(c.out, "\n> ")
		input, readErr := reader.ReadString('\n')
		input = strings.TrimSpace(input)

		if input != "" {
			// Slash prefix → deterministic command dispatcher, no AI invoked.
			if strings.HasPrefix(input, "/") {
				if err := c.dispatchSlash(ctx, input); err != nil {
					if errors.Is(err, errExit) {
						fmt.Fprintln(c.out, "¡Hasta luego!")
						return
					}
					fmt.Fprintf(c.out, "Error: %v\n", err)
				}
			} else if err := c.Say(ctx, input); err != nil {
				fmt.Fprintf(c.out, "Error: %v\n", err)
			}
		}

		if readErr != nil {
			return
		}
	}
}

// Say runs one turn and keeps the returned session for the next one.
func (c *Console) Say(ctx context.Context, text string) error {
	res, err := c.svc.HandleVoiceText(ctx, app.VoiceTextRequest{
		StoreRequest: c.store,
		SessionID:    c.session,
		Locale:       c.locale,
		Device:       "console",
		Text:         text,
	})
	if err != nil {
		return err
	}
	if res.SessionID != uuid.Nil {
		session := res.SessionID
		c.session = &session
	}
	printResponse(c.out, res.Response)
	return nil
}

func (c *Console) dispatchSlash(ctx context.Context, input string) error {
	tokens := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(tokens) == 0 {
		return nil
	}
	cmd := strings.ToLower(tokens[0])
	args := tokens[1:]

	switch cmd {
	case "products", "productos":
		req := app.ProductListRequest{StoreRequest: c.store, Limit: 50}
		if len(args) > 0 {
			if n, err := strconv.Atoi(args[len(args)-1]); err == nil && n > 0 {
				req.Limit = n
				args = args[:len(args)-1]
			}
			req.Search = strings.Join(args, " ")
		}
		result, err := c.svc.ListProducts(ctx, req)
		if err != nil {
			return err
		}
		printProducts(c.out, result)

	case "stock":
		result, err := c.svc.GetStockSummary(ctx, c.store)
		if err != nil {
			return err
		}
		printStockSummary(c.out, result)

	case "new", "nueva":
		c.session = nil
		fmt.Fprintln(c.out, "Nueva sesión.")

	case "session", "sesion":
		if c.session == nil {
			fmt.Fprintln(c.out, "Sin sesión activa.")
		} else {
			fmt.Fprintf(c.out, "Sesión: %s\n", c.session)
		}

	case "help", "h":
		printHelp(c.out)

	case "exit", "quit", "salir":
		return errExit

	default:
		fmt.Fprintf(c.out, "Unknown command: /%s  (type /help for all commands)\n", cmd)
	}
	return nil
}

func responseLabel(t voice.DecisionType) string {
	switch t {
	case voice.DecisionClarification:
		return "?"
	case voice.DecisionAction:
		return "ACCIÓN"
	default:
		return "AI"
	}
}
