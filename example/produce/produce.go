package main

import (
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

	producer, err := s.Producer("my-stream")
	if err != nil {
		// handle error
		panic(err)
	}

	seq, err := producer.Send([]byte("my message"))
	if err != nil {
		// handle error
		panic(err)
	}

	fmt.Printf("successful sent message. Sequence Number: %d \n", seq)
}
