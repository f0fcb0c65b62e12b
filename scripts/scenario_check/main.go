package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/charity-tasks-api/internal/service"
	"github.com/noah-isme/charity-tasks-api/pkg/config"
)

// step is one call in the scenario. Path may contain {task}, replaced with
// the id of the task created earlier in the run.
type step struct {
	Name     string
	Actor    string
	Method   string
	Path     string
	Body     string
	Expect   int
	State    string
	Critical bool
}

type result struct {
	Step     step
	Status   int
	State    string
	Duration time.Duration
	Error    error
}

func (r result) ok() bool {
	if r.Error != nil || r.Status != r.Step.Expect {
		return false
	}
	return r.Step.State == "" || r.Step.State == r.State
}

type runner struct {
	client *http.Client
	base   string
	auth   *service.AuthService
	users  map[string]string
	taskID string
}

func main() {
	var (
		base    string
		timeout time.Duration
	)
	flag.StringVar(&base, "base", "http://localhost:8080/api/v1", "API base URL including the prefix")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	run := &runner{
		client: &http.Client{Timeout: timeout},
		base:   strings.TrimRight(base, "/"),
		auth: service.NewAuthService(nil, service.AuthConfig{
			AccessTokenSecret: cfg.JWT.Secret,
			AccessTokenExpiry: time.Hour,
			Issuer:            cfg.JWT.Issuer,
			Audience:          cfg.JWT.Audience,
		}),
		users: map[string]string{},
	}
	// Fresh identities keep repeated runs against one database independent.
	suffix := uuid.NewString()[:8]
	for _, role := range []string{"charity", "b1", "b2"} {
		run.users[role] = role + "-" + suffix
	}

	var (
		results  []result
		breaking int
		optional int
	)
	for _, s := range scenario() {
		res := run.perform(s)
		if !res.ok() {
			if s.Critical {
				breaking++
			} else {
				optional++
			}
		}
		results = append(results, res)
	}

	printReport(results)

	fmt.Printf("Breaking failures: %d, Optional failures: %d\n", breaking, optional)
	if breaking > 0 {
		os.Exit(1)
	}
}

func scenario() []step {
	return []step{
		{Name: "register charity", Actor: "charity", Method: http.MethodPost, Path: "/charities", Body: `{"name":"Scenario Charity","reg_number":"SC-1"}`, Expect: http.StatusCreated, Critical: true},
		{Name: "register b1", Actor: "b1", Method: http.MethodPost, Path: "/benefactors", Body: `{"experience":1,"free_time_per_week":4}`, Expect: http.StatusCreated, Critical: true},
		{Name: "register b2", Actor: "b2", Method: http.MethodPost, Path: "/benefactors", Body: `{}`, Expect: http.StatusCreated, Critical: true},
		{Name: "benefactor cannot post", Actor: "b1", Method: http.MethodPost, Path: "/tasks", Body: `{"title":"x"}`, Expect: http.StatusForbidden},
		{Name: "post task", Actor: "charity", Method: http.MethodPost, Path: "/tasks", Body: `{"title":"Scenario task"}`, Expect: http.StatusCreated, State: "P", Critical: true},
		{Name: "b1 requests", Actor: "b1", Method: http.MethodPost, Path: "/tasks/{task}/request", Expect: http.StatusOK, State: "W", Critical: true},
		{Name: "b2 cannot request waiting task", Actor: "b2", Method: http.MethodPost, Path: "/tasks/{task}/request", Expect: http.StatusNotFound, Critical: true},
		{Name: "b1 cannot respond", Actor: "b1", Method: http.MethodPost, Path: "/tasks/{task}/response", Body: `{"response":"A"}`, Expect: http.StatusForbidden, Critical: true},
		{Name: "charity rejects", Actor: "charity", Method: http.MethodPost, Path: "/tasks/{task}/response", Body: `{"response":"R"}`, Expect: http.StatusOK, State: "P", Critical: true},
		{Name: "b2 requests", Actor: "b2", Method: http.MethodPost, Path: "/tasks/{task}/request", Expect: http.StatusOK, State: "W", Critical: true},
		{Name: "charity accepts", Actor: "charity", Method: http.MethodPost, Path: "/tasks/{task}/response", Body: `{"response":"A"}`, Expect: http.StatusOK, State: "A", Critical: true},
		{Name: "b1 cannot complete", Actor: "b1", Method: http.MethodPost, Path: "/tasks/{task}/done", Expect: http.StatusForbidden, Critical: true},
		{Name: "b2 completes", Actor: "b2", Method: http.MethodPost, Path: "/tasks/{task}/done", Expect: http.StatusOK, State: "D", Critical: true},
		{Name: "completed is terminal", Actor: "charity", Method: http.MethodPost, Path: "/tasks/{task}/done", Expect: http.StatusNotFound, Critical: true},
		{Name: "export csv", Actor: "charity", Method: http.MethodGet, Path: "/tasks/export?format=csv", Expect: http.StatusOK},
	}
}

func (r *runner) perform(s step) result {
	res := result{Step: s}
	if strings.Contains(s.Path, "{task}") && r.taskID == "" {
		res.Error = errors.New("no task created yet")
		return res
	}

	token, _, err := r.auth.IssueToken(r.users[s.Actor], r.users[s.Actor], "")
	if err != nil {
		res.Error = fmt.Errorf("issue token: %w", err)
		return res
	}

	var body io.Reader
	if s.Body != "" {
		body = bytes.NewBufferString(s.Body)
	}
	req, err := http.NewRequest(s.Method, r.base+strings.ReplaceAll(s.Path, "{task}", r.taskID), body)
	if err != nil {
		res.Error = err
		return res
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if s.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err
		return res
	}
	defer resp.Body.Close()
	res.Status = resp.StatusCode

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		return res
	}
	var envelope struct {
		Data struct {
			ID    string `json:"id"`
			State string `json:"state"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		res.Error = fmt.Errorf("decode body: %w", err)
		return res
	}
	res.State = envelope.Data.State
	if s.Path == "/tasks" && s.Method == http.MethodPost && envelope.Data.ID != "" {
		r.taskID = envelope.Data.ID
	}
	return res
}

func printReport(results []result) {
	fmt.Println("Task Scenario Report")
	fmt.Println("====================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.ok() {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s (%s %s as %s)\n", status, res.Step.Name, res.Step.Method, res.Step.Path, res.Step.Actor)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
			continue
		}
		fmt.Printf("  Status: %d want %d (%s)", res.Status, res.Step.Expect, res.Duration)
		if res.Step.State != "" {
			fmt.Printf(" | State: %q want %q", res.State, res.Step.State)
		}
		fmt.Printf(" | Critical: %t\n", res.Step.Critical)
	}
}
