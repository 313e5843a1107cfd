// Command chatctl is the terminal client: account management, conversation
// listing and a live watch mode for one conversation.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/jk08y/real-time-chat-app/internal/app"
	"github.com/jk08y/real-time-chat-app/internal/bus"
	"github.com/jk08y/real-time-chat-app/internal/chat"
	"github.com/jk08y/real-time-chat-app/internal/config"
	"github.com/jk08y/real-time-chat-app/internal/docstore"
	"github.com/jk08y/real-time-chat-app/internal/filestore"
	"github.com/jk08y/real-time-chat-app/internal/identity"
	"github.com/jk08y/real-time-chat-app/internal/profile"
	"github.com/jk08y/real-time-chat-app/internal/status"
	"github.com/jk08y/real-time-chat-app/internal/timefmt"
)

// env is the populated object graph every command runs against.
type env struct {
	fx.In

	Config   *config.Config
	Identity *identity.Service
	Store    docstore.Store
	Bus      *bus.Bus
	Machine  *status.Machine
	Files    filestore.Store
	Logger   *zap.Logger
}

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	var e env
	fxApp := fx.New(
		app.Module(app.Params{Profile: profileName}),
		fx.Populate(&e),
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := fxApp.Start(startCtx); err != nil {
		cancel()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cancel()

	code := run(e, args, *jsonFlag)

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := fxApp.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if code == 0 {
			code = 1
		}
	}
	cancel()
	os.Exit(code)
}

func run(e env, args []string, jsonOut bool) int {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "signup":
		return cmdSignup(ctx, e, args[1:])
	case "login":
		return cmdLogin(ctx, e, args[1:])
	case "logout":
		return cmdLogout(ctx, e)
	case "whoami":
		return cmdWhoami(e, jsonOut)
	case "status":
		return cmdStatus(e, jsonOut)
	case "profile":
		return cmdProfile(ctx, e, args[1:])
	case "search":
		return cmdSearch(ctx, e, args[1:], jsonOut)
	case "chats":
		return cmdChats(ctx, e, jsonOut)
	case "open":
		return cmdOpen(ctx, e, args[1:])
	case "send":
		return cmdSend(ctx, e, args[1:])
	case "watch":
		return cmdWatch(e, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: chatctl [--profile <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  signup <email> <display name>   Create an account")
	fmt.Fprintln(os.Stderr, "  login <email>                   Sign in")
	fmt.Fprintln(os.Stderr, "  logout                          Sign out and go offline")
	fmt.Fprintln(os.Stderr, "  whoami                          Show the signed-in principal")
	fmt.Fprintln(os.Stderr, "  status                          Show session state")
	fmt.Fprintln(os.Stderr, "  profile [--name N] [--avatar F] Update display name / avatar")
	fmt.Fprintln(os.Stderr, "  search <prefix>                 Find users by display name")
	fmt.Fprintln(os.Stderr, "  chats                           List conversations")
	fmt.Fprintln(os.Stderr, "  open <email>                    Resolve a conversation")
	fmt.Fprintln(os.Stderr, "  send <chat-id> <text>           Send a message")
	fmt.Fprintln(os.Stderr, "  watch <chat-id>                 Live conversation view")
}

// session builds the chat session core for the signed-in principal.
func session(e env) (*chat.Session, error) {
	p := e.Identity.Current()
	if p == nil {
		return nil, errors.New("not signed in; run chatctl login")
	}
	return chat.NewSession(*p, e.Store, e.Bus, e.Logger), nil
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func cmdSignup(ctx context.Context, e env, args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: chatctl signup <email> <display name>")
		return 1
	}
	password, err := readPassword("password: ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	p, err := e.Identity.SignUp(ctx, args[0], password, strings.Join(args[1:], " "))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	_ = e.Machine.Transition(status.Connecting)
	_ = e.Machine.Transition(status.Ready)
	fmt.Printf("Signed up as %s (%s)\n", p.DisplayName, p.Email)
	return 0
}

func cmdLogin(ctx context.Context, e env, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: chatctl login <email>")
		return 1
	}
	password, err := readPassword("password: ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	p, err := e.Identity.SignIn(ctx, args[0], password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	_ = e.Machine.Transition(status.Connecting)
	_ = e.Machine.Transition(status.Ready)
	fmt.Printf("Signed in as %s (%s)\n", p.DisplayName, p.Email)
	return 0
}

func cmdLogout(ctx context.Context, e env) int {
	if err := e.Identity.SignOut(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	_ = e.Machine.Transition(status.AuthRequired)
	fmt.Println("Signed out.")
	return 0
}

func cmdWhoami(e env, jsonOut bool) int {
	p := e.Identity.Current()
	if p == nil {
		fmt.Println("Not signed in.")
		return 1
	}
	if jsonOut {
		outputJSON(p)
		return 0
	}
	fmt.Printf("ID:    %s\n", p.ID)
	fmt.Printf("Email: %s\n", p.Email)
	fmt.Printf("Name:  %s\n", p.DisplayName)
	if p.AvatarURL != "" {
		fmt.Printf("Avatar: %s\n", p.AvatarURL)
	}
	return 0
}

func cmdStatus(e env, jsonOut bool) int {
	state := e.Machine.Current()
	if jsonOut {
		outputJSON(map[string]string{"state": string(state)})
		return 0
	}
	fmt.Printf("State: %s\n", state)
	return 0
}

func cmdProfile(ctx context.Context, e env, args []string) int {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	name := fs.String("name", "", "new display name")
	avatar := fs.String("avatar", "", "path to an avatar image")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	avatarURL := ""
	if *avatar != "" {
		data, err := os.ReadFile(*avatar)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		p := e.Identity.Current()
		if p == nil {
			fmt.Fprintln(os.Stderr, "error: not signed in")
			return 1
		}
		dest := p.ID + filepath.Ext(*avatar)
		if err := e.Files.Upload(ctx, dest, data); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		avatarURL, err = e.Files.URL(dest)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
	}

	p, err := e.Identity.UpdateProfile(ctx, *name, avatarURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Printf("Profile updated: %s\n", p.DisplayName)
	return 0
}

func cmdSearch(ctx context.Context, e env, args []string, jsonOut bool) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: chatctl search <prefix>")
		return 1
	}
	sess, err := session(e)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer sess.Close()

	results, err := sess.SearchUsers(ctx, strings.Join(args, " "))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if jsonOut {
		outputJSON(results)
		return 0
	}
	if len(results) == 0 {
		fmt.Println("No users found.")
		return 0
	}
	for _, r := range results {
		fmt.Printf("%-24s %s\n", r.DisplayName, r.ID)
	}
	return 0
}

func cmdChats(ctx context.Context, e env, jsonOut bool) int {
	sess, err := session(e)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer sess.Close()

	convs, err := sess.Conversations(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if jsonOut {
		outputJSON(convs)
		return 0
	}
	if len(convs) == 0 {
		fmt.Println("No conversations yet.")
		return 0
	}
	me := sess.Principal().ID
	for _, c := range convs {
		other := c.OtherParticipant(me)
		name := c.Info[other].DisplayName
		if name == "" {
			name = other
		}
		fmt.Printf("%-36s %-20s %-10s %s\n",
			c.ID, name, timefmt.ChatListDate(c.UpdatedAt), c.LastMessage.Text)
	}
	return 0
}

func cmdOpen(ctx context.Context, e env, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: chatctl open <email>")
		return 1
	}
	sess, err := session(e)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer sess.Close()

	target, err := e.Identity.LookupEmail(ctx, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	conv, err := sess.ResolveConversation(ctx, target.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Printf("Conversation with %s: %s\n", target.DisplayName, conv.ID)
	return 0
}

func cmdSend(ctx context.Context, e env, args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: chatctl send <chat-id> <text>")
		return 1
	}
	sess, err := session(e)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer sess.Close()

	msg, err := sess.SendMessage(ctx, args[0], strings.Join(args[1:], " "))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Printf("Sent %s at %s\n", msg.ID, timefmt.MessageDate(msg.SentAt))
	return 0
}

// cmdWatch streams one conversation: messages, typing flags and the other
// participant's presence. Lines typed on stdin are sent as messages; the
// typing flag is raised on each send and cleared after the configured
// inactivity window. Ctrl-C tears every subscription down.
func cmdWatch(e env, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: chatctl watch <chat-id>")
		return 1
	}
	sess, err := session(e)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer sess.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	chatID := args[0]
	conv, err := sess.Conversation(ctx, chatID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	me := sess.Principal().ID
	other := conv.OtherParticipant(me)
	otherName := conv.Info[other].DisplayName
	if otherName == "" {
		otherName = other
	}

	stream, err := sess.OpenMessages(chatID, e.Config.MessageWindow)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer stream.Close()

	var out sync.Mutex
	cancelTyping, err := sess.SubscribeTyping(chatID, func(state map[string]bool) {
		if state[other] {
			out.Lock()
			fmt.Printf("-- %s is typing...\n", otherName)
			out.Unlock()
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer cancelTyping()

	cancelPresence, err := sess.WatchPresence(other, func(p chat.Presence) {
		out.Lock()
		if p.Online {
			fmt.Printf("-- %s is online\n", otherName)
		} else {
			fmt.Printf("-- %s: %s\n", otherName, p.LastSeen)
		}
		out.Unlock()
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer cancelPresence()

	// Message snapshots replace the visible tail of the conversation.
	go func() {
		for msgs := range stream.Updates() {
			out.Lock()
			for _, m := range msgs {
				who := otherName
				if m.SentBy == me {
					who = "me"
				}
				fmt.Printf("[%s] %s: %s\n", timefmt.MessageDate(m.SentAt), who, m.Text)
			}
			fmt.Println("---")
			out.Unlock()
		}
	}()

	// Typed lines become messages. The typing flag clears itself after the
	// configured inactivity window unless another line lands first.
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	window := e.Config.TypingWindow()
	var clearTyping *time.Timer
	for {
		select {
		case <-ctx.Done():
			if clearTyping != nil {
				clearTyping.Stop()
			}
			_ = sess.SetTyping(context.Background(), chatID, false)
			fmt.Println("\nbye")
			return 0
		case line, ok := <-lines:
			if !ok {
				return 0
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			_ = sess.SetTyping(ctx, chatID, true)
			if clearTyping != nil {
				clearTyping.Stop()
			}
			clearTyping = time.AfterFunc(window, func() {
				_ = sess.SetTyping(context.Background(), chatID, false)
			})
			if _, err := sess.SendMessage(ctx, chatID, line); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
		}
	}
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
