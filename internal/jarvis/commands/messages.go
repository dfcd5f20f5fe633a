package commands

// Messages are the canned replies used across plugins. All fields accept
// TeamSpeak BBCode markup.
type Messages struct {
	Sanitation string `yaml:"sanitation"`
	Forbidden  string `yaml:"forbidden"`
	Internal   string `yaml:"internal"`
	External   string `yaml:"external"`
	Terminate  string `yaml:"terminate"`
	Expired    string `yaml:"expired"`
}

// DefaultMessages returns the stock reply set.
func DefaultMessages() Messages {
	return Messages{
		Sanitation: "[b]Invalid entry, try again:[/b]",
		Forbidden:  "[b]Insufficient permissions[/b] :(",
		Internal:   "[b]Caught Internal Error:[/b] ",
		External:   "[b]Caught External Error:[/b] ",
		Terminate:  "[b]Session ended![/b]",
		Expired:    "[b]Session expired![/b]",
	}
}
