package main

import (
	"fmt"

	streamer "github.com/scrogson/sea-streamer"
)

func main() {

	reader, err := streamer.OpenReader("./stream.ss", streamer.ReaderConfig{
		Mode:  streamer.ModeReplay,
		Start: streamer.AtSequence("my-stream", 0, 100),
	})
	if err != nil {
		// handle error
		panic(err)
	}
	defer reader.Close()

	frame, err := reader.Next()
	if err != nil {
		// handle error
		panic(err)
	}
	fmt.Printf("first frame at or past 100: %d %s \n", frame.Sequence, frame.Payload)
}
