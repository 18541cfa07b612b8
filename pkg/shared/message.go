package shared

// MessageType definiert den Typ einer Nachricht für die WebSocket-Kommunikation.
type MessageType int

const (
	// client -> server
	MessageTypeText     MessageType = 0 // Text über den Control-Code-Interpreter ausgeben
	MessageTypeKey      MessageType = 1 // Taste in den Tastaturpuffer (Content) oder Tastenzustand (Key/State)
	MessageTypeInput    MessageType = 2 // Antwort auf INPUT
	MessageTypeRun      MessageType = 3 // registriertes Programm starten (Content = Name)
	MessageTypeSnapshot MessageType = 4 // VM-Zustand speichern (Label)
	MessageTypeRestore  MessageType = 5 // VM-Zustand laden (ID oder Label)
	MessageTypeReset    MessageType = 6 // Kaltstart
	MessageTypeEscape   MessageType = 7 // ESC, bricht ein laufendes Programm ab
	MessageTypeCont     MessageType = 8 // CONT nach STOP / Break

	// server -> client
	MessageTypeSession MessageType = 20 // Session-ID
	MessageTypeScreen  MessageType = 21 // gerenderter Bildschirm
	MessageTypeStop    MessageType = 22 // Programm angehalten (Stop, Line)
	MessageTypeFault   MessageType = 23 // BASIC-Fehler (Code, Line, Content)
	MessageTypeSound   MessageType = 24 // Ton- oder Bell-Ereignis
	MessageTypeWaiting MessageType = 25 // Programm wartet auf INPUT (Content = Prompt)
	MessageTypeError   MessageType = 26 // Fehler außerhalb der VM (z.B. unbekannter Snapshot)
)

// Message is one JSON frame in either direction.
type Message struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content,omitempty"`

	// Für SESSION
	SessionID string `json:"sessionId,omitempty"`

	// Für KEY: CPC-Tastennummer und Zustand (-1 losgelassen)
	Key   int  `json:"key,omitempty"`
	State *int `json:"state,omitempty"`

	// Für SCREEN
	Lines         []string `json:"lines,omitempty"`
	Mode          int      `json:"mode"`
	CursorX       int      `json:"cursorX"`
	CursorY       int      `json:"cursorY"`
	CursorVisible bool     `json:"cursorVisible,omitempty"`

	// Für STOP / FAULT
	Stop string `json:"stop,omitempty"`
	Code int    `json:"code,omitempty"`
	Line int    `json:"line,omitempty"`

	// Für SNAPSHOT / RESTORE
	Label string `json:"label,omitempty"`
	ID    string `json:"id,omitempty"`

	// Für SOUND
	Channel  int  `json:"channel,omitempty"`
	Period   int  `json:"period,omitempty"`
	Duration int  `json:"duration,omitempty"`
	Volume   int  `json:"volume,omitempty"`
	Noise    int  `json:"noise,omitempty"`
	Bell     bool `json:"bell,omitempty"`
}
