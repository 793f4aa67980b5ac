package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/flowdag/dde-go/dde"
)

// shellExecutor runs each node's declared shell command. The run context is
// passed through the environment:
//
//	DDE_RUN_ID   current run ID
//	DDE_NODE_ID  node being executed
//	DDE_ATTEMPT  1-based attempt number
//	DDE_INPUT    JSON of globals, dependency outputs and active mocks
//
// If the command's last stdout line is a JSON object it becomes the node's
// output; otherwise the full stdout is committed under "stdout". Nodes
// without a command succeed with an empty output.
type shellExecutor struct {
	commands map[string]string
}

func newShellExecutor(commands map[string]string) *shellExecutor {
	return &shellExecutor{commands: commands}
}

type shellInput struct {
	Globals map[string]any            `json:"globals"`
	Outputs map[string]map[string]any `json:"outputs"`
	Mocks   map[string]map[string]any `json:"mocks,omitempty"`
}

// Execute implements dde.TaskExecutor.
func (e *shellExecutor) Execute(ctx context.Context, nodeID string, input dde.Input) (dde.Output, error) {
	command, ok := e.commands[nodeID]
	if !ok {
		return dde.Output{}, nil
	}

	payload, err := json.Marshal(shellInput{
		Globals: input.Globals,
		Outputs: input.Outputs,
		Mocks:   input.Mocks,
	})
	if err != nil {
		return nil, dde.Fatal(fmt.Errorf("encode input for node %s: %w", nodeID, err))
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Env = append(os.Environ(),
		"DDE_RUN_ID="+input.RunID,
		"DDE_NODE_ID="+nodeID,
		"DDE_ATTEMPT="+strconv.Itoa(input.Attempt),
		"DDE_INPUT="+string(payload),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("node %s command failed: %s", nodeID, msg)
	}
	return parseCommandOutput(stdout.String()), nil
}

func parseCommandOutput(stdout string) dde.Output {
	trimmed := strings.TrimSpace(stdout)
	lines := strings.Split(trimmed, "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if strings.HasPrefix(last, "{") {
		var out dde.Output
		if err := json.Unmarshal([]byte(last), &out); err == nil {
			return out
		}
	}
	return dde.Output{"stdout": trimmed}
}
