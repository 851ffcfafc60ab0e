package main

import (
	"context"
	"fmt"

	streamer "github.com/scrogson/sea-streamer"
)

func main() {

	s, err := streamer.Connect("./stream.ss", streamer.Config{})
	if err != nil {
		// handle error
		panic(err)
	}
	defer s.Close()

	consumer, err := s.Subscribe(streamer.SubscribeConfig{
		StreamKey: "my-stream",
		Group:     "my-group",
		Mode:      streamer.ModeLiveReplay,
	})
	if err != nil {
		// handle error
		panic(err)
	}
	defer consumer.Close()

	for {
		frame, err := consumer.Next(context.Background())
		if err != nil {
			// handle error
			panic(err)
		}
		fmt.Printf("[%d] %s \n", frame.Sequence, frame.Payload)
	}
}
