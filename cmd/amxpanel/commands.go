package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/amxpanel/amxpanel/internal/model"
	"github.com/amxpanel/amxpanel/internal/server"
)

// runImport validates a project file and stores it.
func runImport(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: import <file> [name]")
	}
	name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	if len(args) > 1 {
		name = args[1]
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	proj, err := model.LoadProject(f)
	if err != nil {
		return err
	}

	st, err := openStore(loadConfig())
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Save(context.Background(), name, proj); err != nil {
		return err
	}
	fmt.Printf("imported %q: %d pages\n", name, len(proj.Pages))
	return nil
}

// runProjects lists stored projects, or searches pages when a query is
// given.
func runProjects(args []string) error {
	st, err := openStore(loadConfig())
	if err != nil {
		return err
	}
	defer st.Close()
	ctx := context.Background()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	if len(args) > 0 {
		hits, err := st.Search(ctx, strings.Join(args, " "), 50)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "PROJECT\tID\tKIND\tNAME")
		for _, h := range hits {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", h.Project, h.PageID, h.Kind, h.Name)
		}
		return nil
	}

	list, err := st.List(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "NAME\tPANEL\tPAGES\tPOPUPS\tUPDATED")
	for _, p := range list {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n", p.Name, p.PanelID, p.Pages, p.Popups, p.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

// runSend posts a raw command to the running daemon.
func runSend(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: send <command>")
	}
	cfg := loadConfig()
	body, _ := json.Marshal(map[string]string{"command": strings.Join(args, " ")})
	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("http://%s/api/command", cfg.ViewAddr), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Secret != "" {
		tok, err := server.NewAuth(cfg.Secret, "").Issue("cli")
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var res server.CommandResult
	if err := json.Unmarshal(data, &res); err != nil {
		return err
	}
	if res.Position < 0 {
		fmt.Printf("%s: no handler\n", res.Token)
	} else {
		fmt.Printf("%s: handled by %s\n", res.Token, res.Prefix)
	}
	if res.Error != "" {
		return errors.New(res.Error)
	}
	return nil
}

// runStatus checks if the daemon is running by hitting the health endpoint.
func runStatus() error {
	cfg := loadConfig()
	addr := cfg.ViewAddr

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/health", addr))
	if err != nil {
		return fmt.Errorf("daemon is NOT running at %s: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	var health struct {
		Viewers int `json:"viewers"`
	}
	json.NewDecoder(resp.Body).Decode(&health)
	fmt.Printf("daemon is running at %s (%d viewers)\n", addr, health.Viewers)
	return nil
}

// runHash prints the bcrypt hash of a password read from the terminal.
func runHash() error {
	fmt.Fprint(os.Stderr, "Password: ")
	password := readSecretLine(bufio.NewReader(os.Stdin))
	if password == "" {
		return errors.New("empty password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	fmt.Println(string(hash))
	return nil
}

// runToken prints a viewer token signed with the configured secret.
func runToken() error {
	cfg := loadConfig()
	if cfg.Secret == "" {
		return errors.New("AMXPANEL_SECRET is not set")
	}
	tok, err := server.NewAuth(cfg.Secret, "").Issue("viewer")
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

// readSecretLine reads a line without echoing when stdin is a terminal.
func readSecretLine(reader *bufio.Reader) string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
