// Command newbill submits expense reports to a billed server from the shell.
//
//	newbill login -email employee@test.tld -password employee
//	newbill new -file receipt.jpg -type Transports -name "Vol Paris Londres" -amount 348 -date 2004-04-04
//	newbill list
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"billed/internal/cli"
	"billed/internal/core"
	"billed/internal/log"
	"billed/internal/newbill"
	"billed/internal/routes"
	"billed/internal/session"
	"billed/internal/store"
	"billed/internal/store/api"
)

const usage = `usage: newbill <command> [flags]

commands:
  login    authenticate and store the session
  logout   forget the stored session
  new      upload a receipt and submit the bill
  list     show your bills`

type app struct {
	apiURL  string
	kv      session.KeyValueStore
	session *session.Reader
	logger  *log.Logger
}

func main() {
	cli.LoadEnvFile()
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	lc := log.DefaultConfig()
	lc.Output = os.Stderr
	lc.Level = log.ParseLevel(getEnv("LOG_LEVEL", "warn"))
	lc.Format = getEnv("LOG_FORMAT", "pretty")
	lc.Component = log.ComponentNewBill
	logger := log.New(lc)

	home, _ := os.UserHomeDir()
	kv := session.NewFileStore(getEnv("BILLED_SESSION_FILE", filepath.Join(home, ".billed", "session.json")))
	a := &app{
		apiURL:  getEnv("BILLED_API_URL", "http://localhost:8081"),
		kv:      kv,
		session: session.NewReader(kv),
		logger:  logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "login":
		err = a.login(ctx, args)
	case "logout":
		err = session.Clear(a.kv)
	case "new":
		err = a.newBill(ctx, args)
	case "list":
		err = a.list(ctx)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "newbill:", err)
		os.Exit(1)
	}
}

func (a *app) client() (*api.Client, error) {
	return api.New(a.apiURL, api.WithToken(a.session.Token))
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("BILLED_PASSWORD"), "account password (or BILLED_PASSWORD)")
	userType := fs.String("type", string(core.Employee), "Employee or Admin")
	_ = fs.Parse(args)

	if *email == "" || *password == "" {
		return errors.New("login: -email and -password are required")
	}
	c, err := a.client()
	if err != nil {
		return err
	}
	typ := core.UserType(*userType)
	token, err := c.Login(ctx, api.Credentials{Email: *email, Password: *password, Type: typ})
	if err != nil {
		return err
	}
	if err := session.Save(a.kv, core.Session{Email: *email, Type: typ}, token); err != nil {
		return err
	}
	fmt.Printf("logged in as %s\n", *email)
	return nil
}

func (a *app) newBill(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("new", flag.ExitOnError)
	file := fs.String("file", "", "receipt image (jpg, jpeg or png)")
	var v newbill.FormValues
	fs.StringVar(&v.Type, "type", string(core.TypeTransports), "expense type")
	fs.StringVar(&v.Name, "name", "", "expense name")
	fs.StringVar(&v.Amount, "amount", "", "amount including VAT, e.g. 348 or 12,50")
	fs.StringVar(&v.Date, "date", time.Now().Format("2006-01-02"), "expense date (YYYY-MM-DD)")
	fs.StringVar(&v.VAT, "vat", "", "VAT amount")
	fs.StringVar(&v.Pct, "pct", "", "VAT percentage (default 20)")
	fs.StringVar(&v.Commentary, "commentary", "", "free comment")
	_ = fs.Parse(args)

	sess, err := a.session.Session()
	if err != nil {
		return fmt.Errorf("%w: run newbill login first", err)
	}
	if *file == "" {
		return errors.New("new: -file is required")
	}
	content, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("read receipt: %w", err)
	}

	c, err := a.client()
	if err != nil {
		return err
	}
	nav := &routes.Recorder{}
	rules := newbill.DefaultRules()
	rules.RequireUpload = true
	form := newbill.New(c, sess, nav, rules, a.logger)

	res, err := form.HandleChangeFile(ctx, newbill.FileSelection{
		Value: *file,
		Files: []store.File{{
			Name:    filepath.Base(*file),
			Type:    mime.TypeByExtension(strings.ToLower(filepath.Ext(*file))),
			Content: content,
		}},
	})
	if err != nil {
		return err
	}
	fmt.Printf("receipt stored: %s\n", res.FileURL)

	bill, err := form.HandleSubmit(ctx, v)
	if err != nil {
		return err
	}
	fmt.Printf("bill %s submitted (%s, %s EUR, %s)\n", bill.ID, bill.Name, bill.Amount, bill.Status)
	return nil
}

func (a *app) list(ctx context.Context) error {
	if _, err := a.session.Session(); err != nil {
		return fmt.Errorf("%w: run newbill login first", err)
	}
	c, err := a.client()
	if err != nil {
		return err
	}
	bills, err := c.Bills().List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTYPE\tNAME\tAMOUNT\tSTATUS")
	for _, b := range bills {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", b.ID, b.Date, b.Type, b.Name, b.Amount, b.Status)
	}
	return tw.Flush()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
