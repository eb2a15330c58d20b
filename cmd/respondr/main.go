package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/cenkalti/backoff/v4"
	"github.com/labstack/gommon/color"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/respondr/respondr/internal/pkg/analyzer"
	"github.com/respondr/respondr/internal/pkg/analyzer/api"
	"github.com/respondr/respondr/internal/pkg/capture"
	"github.com/respondr/respondr/internal/pkg/phase"
	"github.com/respondr/respondr/internal/pkg/present"
	"github.com/respondr/respondr/internal/pkg/session"
	"github.com/respondr/respondr/internal/pkg/utils"
)

func main() {
	goapp.StartWithDefault()

	printBanner()

	cfg := goapp.Config
	if !cfg.GetBool("debug") {
		// keep the interactive prompt clean
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	ctx := context.Background()
	waitForBackend(ctx, backendURL(cfg))

	client, err := newClient(cfg)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init backend client")
	}

	controller, err := newController(cfg.GetString("device.video"), cfg.GetString("device.audio"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init capture controller")
	}
	defer controller.Release()

	store, err := session.NewStore(&session.Data{Backend: client, Recorder: controller,
		UserLocation: cfg.GetString("userLocation"), Progress: showProgress})
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init session store")
	}

	in := bufio.NewScanner(os.Stdin)

	blob, err := obtainVideo(ctx, controller, in, cfg.GetString("input.file"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't capture video")
	}
	if out := cfg.GetString("output.file"); out != "" {
		if err := utils.WriteFile(out, blob.Bytes()); err != nil {
			goapp.Log.Error().Err(err).Msg("can't save video copy")
		}
	}

	note := cfg.GetString("note")
	if note == "" {
		note = dictate(ctx, controller, client, in, capture.TargetNote,
			"no note configured - press enter to dictate one, or type it now: ")
	}

	if err := store.SubmitVideo(ctx, blob, note); err != nil {
		goapp.Log.Fatal().Err(err).Msg("analysis failed - video and note kept, run again to retry")
	}
	printAnalysis(store)

	chatLoop(ctx, store, controller, client, in)
}

func backendURL(cfg *viper.Viper) string {
	res := cfg.GetString("backend.url")
	if res == "" {
		res = "http://localhost:8000"
	}
	return res
}

func newClient(cfg *viper.Viper) (*analyzer.Client, error) {
	baseURL := backendURL(cfg)
	analyzeURL, _ := url.JoinPath(baseURL, "analyze")
	transcribeURL, _ := url.JoinPath(baseURL, "transcribe")
	chatURL, _ := url.JoinPath(baseURL, "chat")
	return analyzer.NewClient(analyzeURL, transcribeURL, chatURL)
}

func newController(videoDev, audioDev string) (*capture.Controller, error) {
	if videoDev == "" {
		videoDev = "/dev/video0"
	}
	if audioDev == "" {
		audioDev = "/dev/audio"
	}
	src, err := capture.NewDeviceSource(videoDev, audioDev)
	if err != nil {
		return nil, err
	}
	return capture.NewController(src, capture.MP4Prober{})
}

func waitForBackend(ctx context.Context, baseURL string) {
	liveURL, _ := url.JoinPath(baseURL, "live")
	_, err := goapp.InvokeWithBackoff(ctx, func() (interface{}, bool, error) {
		ctx, cancelF := context.WithTimeout(ctx, time.Second*5)
		defer cancelF()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, liveURL, nil)
		if err != nil {
			return nil, false, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, true, fmt.Errorf("can't call: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, true, fmt.Errorf("backend not ready: %d", resp.StatusCode)
		}
		return nil, false, nil
	}, newStartBackoff())
	if err != nil {
		goapp.Log.Fatal().Err(err).Str("url", liveURL).Msg("backend unreachable")
	}
}

func newStartBackoff() backoff.BackOff {
	res := backoff.NewExponentialBackOff()
	res.MaxElapsedTime = time.Second * 30
	return res
}

// obtainVideo ingests the configured file or runs a live recording
func obtainVideo(ctx context.Context, controller *capture.Controller, in *bufio.Scanner, file string) (*capture.Blob, error) {
	if file != "" {
		if !utils.FileExists(file) {
			return nil, fmt.Errorf("no file: %s", file)
		}
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return controller.IngestUploadedFile(ctx, file, mimeForFile(file), f)
	}
	if err := controller.StartVideoRecording(ctx); err != nil {
		return nil, err
	}
	fmt.Printf("recording (auto stop at %v) - press enter to stop\n", capture.MaxVideoDuration)
	in.Scan()
	return controller.StopVideoRecording()
}

func mimeForFile(name string) string {
	switch {
	case strings.HasSuffix(name, ".mp4"):
		return "video/mp4"
	case strings.HasSuffix(name, ".webm"):
		return "video/webm"
	case strings.HasSuffix(name, ".mov"):
		return "video/quicktime"
	}
	return ""
}

// dictate records one audio take and sends it for transcription.
// An empty enter starts dictation; any other input is used as the text itself.
func dictate(ctx context.Context, controller *capture.Controller, client *analyzer.Client,
	in *bufio.Scanner, target capture.Target, prompt string) string {
	fmt.Print(prompt)
	if !in.Scan() {
		return ""
	}
	if txt := strings.TrimSpace(in.Text()); txt != "" {
		return txt
	}
	if err := controller.StartAudioCapture(ctx, target); err != nil {
		goapp.Log.Error().Err(err).Msg("can't start dictation")
		return ""
	}
	fmt.Println("dictating - press enter to stop")
	in.Scan()
	blob, err := controller.StopAudioCapture(target)
	if err != nil || blob == nil {
		return ""
	}
	defer blob.Release()
	res, err := client.Transcribe(ctx, &api.UploadData{Files: map[string]io.Reader{api.PrmAudio: blob.Reader()}})
	if err != nil {
		goapp.Log.Error().Err(err).Msg("can't transcribe")
		return ""
	}
	fmt.Printf("transcribed: %s\n", res.Transcription)
	return res.Transcription
}

func showProgress(prc int) {
	fmt.Printf("\ruploading... %3d%%", prc)
	if prc == 100 || prc == 0 {
		fmt.Println()
	}
}

func printAnalysis(store *session.Store) {
	for _, m := range store.Messages() {
		if m.Kind != session.AssistantAnalysis {
			continue
		}
		v := present.BuildAnalysisView(m.Analysis)
		fmt.Printf("\n%s priority: %s\n", v.Priority.Icon, v.Priority.Name)
		if v.Summary != "" {
			fmt.Printf("%s\n", v.Summary)
		}
		if v.Severity != "" {
			fmt.Printf("severity: %s, cars involved: %d\n", v.Severity, v.CarsInvolved)
		}
		for _, a := range v.ImmediateActions {
			fmt.Printf("  ! %s\n", a)
		}
		printServices(v.Listed, v.Markers)
	}
	fmt.Printf("\nsession %s - ask follow-up questions (%d turns max), /reset or /quit\n",
		store.SessionID(), session.MaxTurns)
}

func printServices(listed []api.ServiceRecord, markers []present.Marker) {
	if len(listed) == 0 {
		return
	}
	fmt.Printf("nearby services (%d on map):\n", len(markers))
	for _, s := range listed {
		fmt.Printf("  - %s, %s", s.Name, s.Address)
		if s.Phone != "" {
			fmt.Printf(", %s", s.Phone)
		}
		fmt.Println()
		if s.AIAdvice != "" {
			fmt.Printf("      advice: %s\n", s.AIAdvice)
		}
		if s.RecommendationReason != "" {
			fmt.Printf("      why: %s\n", s.RecommendationReason)
		}
	}
}

func chatLoop(ctx context.Context, store *session.Store, controller *capture.Controller,
	client *analyzer.Client, in *bufio.Scanner) {
	for store.Phase() == phase.Chatting {
		fmt.Printf("[%d/%d] > ", store.TurnCount(), session.MaxTurns)
		if !in.Scan() {
			return
		}
		txt := strings.TrimSpace(in.Text())
		switch txt {
		case "/quit":
			return
		case "/reset":
			store.Reset()
			fmt.Println("session cleared")
			return
		case "/voice":
			txt = dictate(ctx, controller, client, in, capture.TargetChat, "press enter to dictate: ")
		}
		before := len(store.Messages())
		if err := store.SendMessage(ctx, txt); err != nil {
			goapp.Log.Error().Err(err).Msg("can't send")
			continue
		}
		printReplies(store, before)
	}
	if store.Phase() == phase.LimitReached {
		fmt.Println("turn limit reached - /reset to start a new analysis")
	}
}

func printReplies(store *session.Store, from int) {
	msgs := store.Messages()
	for _, m := range msgs[from:] {
		if m.Kind != session.AssistantReply {
			continue
		}
		v := present.BuildReplyView(&api.ChatResponse{Response: m.Text, LocationData: m.Location})
		fmt.Println(v.Text)
		printServices(v.Listed, v.Markers)
	}
}

var (
	version = "DEV"
)

func printBanner() {
	banner := `
                                           __
   ________  _________  ____  ____  ____/ /____
  / ___/ _ \/ ___/ __ \/ __ \/ __ \/ __  / ___/
 / /  /  __(__  ) /_/ / /_/ / / / / /_/ / /
/_/   \___/____/ .___/\____/_/ /_/\__,_/_/
              /_/                      v: %s

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/respondr/respondr"))
}
