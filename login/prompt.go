package login

import (
	"os"

	"github.com/AlecAivazis/survey/v2"
	"golang.org/x/term"
)

// Prompter asks the operator a yes/no question.
type Prompter interface {
	Confirm(message string) (bool, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(message string) (bool, error)

func (f PrompterFunc) Confirm(message string) (bool, error) {
	return f(message)
}

// TerminalPrompter confirms on the terminal. Without a terminal on stdin it assumes yes.
type TerminalPrompter struct{}

func (TerminalPrompter) Confirm(message string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return true, nil
	}

	var ok bool
	err := survey.AskOne(&survey.Confirm{Message: message, Default: true}, &ok)
	return ok, err
}
