package crew

// Agent is a named role handed to the language model as its system persona.
type Agent struct {
	Name        string
	Role        string
	Goal        string
	Backstory   string
	Description string
}

// Task is one textual assignment carried out by a single Agent.
type Task struct {
	Name           string
	Description    string
	ExpectedOutput string
	Agent          *Agent
}

// Output is the result of Crew.Kickoff. Raw holds the last task's text.
type Output struct {
	Raw string
}

func (o Output) String() string {
	return o.Raw
}
