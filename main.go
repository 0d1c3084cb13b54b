package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"talkie/agent"
	"talkie/archive"
	"talkie/audio"
	"talkie/capture"
	"talkie/log"
	"talkie/stt"
	"talkie/tts"
	"talkie/voice"
)

var version = "dev"

func main() {
	deviceFlag := flag.String("device", "", "capture device name substring (default: system default)")
	pickFlag := flag.Bool("pick-device", false, "interactively pick the capture device")
	modeFlag := flag.String("mode", "converse", "startup mode: silent | listen | converse")
	stopWordsFlag := flag.String("stopwords", "", "comma-separated stop words (default: stop,cancel,never mind)")
	langFlag := flag.String("lang", "", "recognition language hint (e.g. en, de)")
	sttModelFlag := flag.String("stt-model", "", "recognition model override")
	archiveFlag := flag.Bool("archive", false, "archive submitted utterances as FLAC")
	logPathFlag := flag.String("logpath", "", "directory for diagnostics and transcript logs")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println("talkie", version)
		return
	}

	startMode, err := parseMode(*modeFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logDir, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "resolving log dir:", err)
		os.Exit(1)
	}
	log.SetDir(logDir)
	if err := log.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "opening logs:", err)
		os.Exit(1)
	}
	defer log.Close()

	actx, err := audio.NewContext()
	if err != nil {
		fmt.Fprintln(os.Stderr, "audio:", err)
		os.Exit(1)
	}
	defer actx.Close()

	var device *audio.DeviceInfo
	switch {
	case *deviceFlag != "":
		device, err = audio.FindDevice(actx, *deviceFlag)
	case *pickFlag:
		device, err = audio.SelectDevice(actx)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	recognizer, err := stt.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	player, err := actx.NewPlayer()
	if err != nil {
		fmt.Fprintln(os.Stderr, "audio output:", err)
		os.Exit(1)
	}
	synth := tts.New()
	speaker := tts.NewSpeaker(synth, player)

	a := &app{
		chat:      agent.NewFromEnv(),
		startMode: startMode,
	}

	if *archiveFlag {
		a.archiver, err = archive.New(filepath.Join(logDir, "utterances"), 16000)
		if err != nil {
			fmt.Fprintln(os.Stderr, "archive:", err)
			os.Exit(1)
		}
	}

	a.mic = capture.NewMicSession(capture.Options{
		Context:    actx,
		Device:     device,
		Recognizer: recognizer,
		Language:   *langFlag,
		Model:      *sttModelFlag,
		OnQuiet:    func(quiet bool) { sendTUI(QuietMsg{Quiet: quiet}) },
	})

	a.ctrl = voice.NewController(a.mic, speaker, voice.Config{
		StopWords: parseStopWords(*stopWordsFlag),
		OnSubmit:  a.submit,
		OnCancel:  a.cancelAsk,
		Events:    a,
	})

	log.SessionStart(startMode.String(), recognizer.Name(), synth.Name())

	p := NewTUIProgram(a)
	tuiMu.Lock()
	tuiProgram = p
	tuiMu.Unlock()
	sendTUI(DeviceLineMsg{Text: deviceLineText(device)})

	_, runErr := p.Run()

	a.ctrl.Close()
	speaker.Stop()
	log.SessionEnd(int(a.utterances.Load()))
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}

func parseMode(s string) (voice.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent":
		return voice.Silent, nil
	case "listen":
		return voice.ListenOnly, nil
	case "converse", "conversational":
		return voice.Conversational, nil
	default:
		return voice.Silent, fmt.Errorf("unknown mode %q (want silent, listen or converse)", s)
	}
}

func parseStopWords(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil // controller falls back to its defaults
	}
	var words []string
	for _, w := range strings.Split(s, ",") {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, strings.ToLower(w))
		}
	}
	return words
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

// app glues the controller, the agent client and the TUI together.
type app struct {
	ctrl      *voice.Controller
	mic       *capture.MicSession
	chat      *agent.Client
	archiver  *archive.Archiver
	startMode voice.Mode

	utterances atomic.Int64

	askMu   sync.Mutex
	askStop context.CancelFunc
}

// actions (driven by the TUI)

func (a *app) SetMode(m voice.Mode) {
	a.cancelAsk()
	a.ctrl.SetMode(m)
}

func (a *app) InitialMode() voice.Mode { return a.startMode }

func (a *app) ClearHistory() { a.chat.ClearHistory() }

// SubmitTyped sends a keyboard message through the same agent path as
// a spoken one. Replies are displayed, never spoken: typed input only
// exists in Silent mode.
func (a *app) SubmitTyped(text string) {
	id := uuid.NewString()[:8]
	log.Utterance(id, text)
	sendTUI(SubmittedMsg{Text: text})
	a.utterances.Add(1)
	go func() {
		reply, err := a.chat.Ask(context.Background(), text)
		if err != nil {
			sendTUI(AgentErrMsg{Err: err})
			return
		}
		sendTUI(ReplyMsg{Text: reply})
	}()
}

// voice.EventSink (driven by the controller)

func (a *app) ModeChanged(m voice.Mode) { sendTUI(ModeMsg{Mode: m}) }
func (a *app) StateChanged(s voice.State) { sendTUI(StateMsg{State: s}) }
func (a *app) TranscriptChanged(text string) { sendTUI(TranscriptMsg{Text: text}) }
func (a *app) LoudnessChanged(level float64) { sendTUI(LevelMsg{Level: level}) }
func (a *app) VoiceError(err error) { sendTUI(VoiceErrMsg{Err: err}) }

// submit is the controller's OnSubmit callback: one utterance became a
// message. Runs the agent round-trip off the controller's goroutine so
// a slow backend never blocks the state machine.
func (a *app) submit(text string) {
	id := uuid.NewString()[:8]
	log.Utterance(id, text)
	sendTUI(SubmittedMsg{Text: text})
	a.utterances.Add(1)

	pcm := a.mic.TakeUtterance()
	if a.archiver != nil && len(pcm) > 0 {
		go func() {
			if _, err := a.archiver.Save(id, pcm); err != nil {
				log.Errorf("archiving %s: %v", id, err)
			}
		}()
	}

	ctx := a.newAskContext()
	go func() {
		reply, err := a.chat.Ask(ctx, text)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return // stop word already moved the session on
			}
			log.Errorf("agent request %s: %v", id, err)
			sendTUI(AgentErrMsg{Err: err})
			a.ctrl.SpeakReply("Sorry, I could not reach the assistant.")
			return
		}
		sendTUI(ReplyMsg{Text: reply})
		a.ctrl.SpeakReply(reply)
	}()
}

// cancelAsk is the controller's OnCancel callback.
func (a *app) cancelAsk() {
	a.askMu.Lock()
	if a.askStop != nil {
		a.askStop()
		a.askStop = nil
	}
	a.askMu.Unlock()
}

func (a *app) newAskContext() context.Context {
	a.askMu.Lock()
	defer a.askMu.Unlock()
	if a.askStop != nil {
		a.askStop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.askStop = cancel
	return ctx
}
