package plugin

// Base implements the descriptive part of Plugin. Reference plugins embed it
// and add executors and triggers from their constructors.
type Base struct {
	PluginID          string
	PluginName        string
	PluginDescription string
	executors         []Executor
	triggers          []Trigger
	requirements      []Requirement
}

// NewBase returns a Base with the given identity.
func NewBase(id, name, description string) Base {
	return Base{PluginID: id, PluginName: name, PluginDescription: description}
}

func (b *Base) ID() string          { return b.PluginID }
func (b *Base) Name() string        { return b.PluginName }
func (b *Base) Description() string { return b.PluginDescription }

// AddExecutor registers an action. Later executors with the same name replace
// earlier ones.
func (b *Base) AddExecutor(e Executor) {
	for i := range b.executors {
		if b.executors[i].Name == e.Name {
			b.executors[i] = e
			return
		}
	}
	b.executors = append(b.executors, e)
}

// AddTrigger registers a trigger.
func (b *Base) AddTrigger(t Trigger) {
	b.triggers = append(b.triggers, t)
}

// Require declares a model capability dependency.
func (b *Base) Require(capabilityID string, optional bool) {
	b.requirements = append(b.requirements, Requirement{ID: capabilityID, Optional: optional})
}

func (b *Base) Executors() []Executor {
	out := make([]Executor, len(b.executors))
	copy(out, b.executors)
	return out
}

func (b *Base) Triggers() []Trigger {
	out := make([]Trigger, len(b.triggers))
	copy(out, b.triggers)
	return out
}

func (b *Base) RequiredCapabilities() []Requirement {
	out := make([]Requirement, len(b.requirements))
	copy(out, b.requirements)
	return out
}
