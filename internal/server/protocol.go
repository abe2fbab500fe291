package server

// Signal is a message from the page.
type Signal struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Command is a message to the page.
type Command struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Signals sent by the page.
const (
	SignalPing             = "ping"
	SignalTranscript       = "transcript"       // text, final
	SignalRecognitionError = "recognitionError" // code, message
	SignalRecognitionEnd   = "recognitionEnd"
	SignalPermission       = "permission" // granted, reason
	SignalSpeechEnd        = "speechEnd"  // id
	SignalStart            = "start"
	SignalStop             = "stop"
	SignalToggle           = "toggle"
	SignalOpenDetail       = "openDetail" // productId
	SignalCloseDetail      = "closeDetail"
)

// Commands sent to the page.
const (
	CommandPong              = "pong"             // id echoed from ping
	CommandHello             = "hello"            // session, state
	CommandStartRecognition  = "startRecognition" // lang, interimResults, continuous
	CommandStopRecognition   = "stopRecognition"
	CommandRequestPermission = "requestPermission"
	CommandSpeak             = "speak"        // id, text, rate, pitch, volume, lang, voice
	CommandCancelSpeech      = "cancelSpeech" // id
	CommandAudio             = "audio"        // sampleRate, channels, pcm (base64)
	CommandFlushAudio        = "flushAudio"   // drop queued audio
	CommandEvent             = "event"        // event
	CommandError             = "error"        // message
)

func (s *Signal) str(key string) string {
	v, _ := s.Data[key].(string)
	return v
}

func (s *Signal) flag(key string) bool {
	v, _ := s.Data[key].(bool)
	return v
}
