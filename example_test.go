package ftp_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/seqio/ftp"
)

func ExampleDial() {
	ctx := context.Background()

	sess, err := ftp.Dial(ctx, ftp.Config{
		Host:     "ftp.example.com",
		Port:     21,
		User:     "alice",
		Password: "secret",
		Timeout:  10 * time.Second,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer sess.Disconnect()

	data, err := sess.Download(ctx, "/reports/latest.csv")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("downloaded %d bytes\n", len(data))
}

func ExampleSession_Upload() {
	ctx := context.Background()

	sess, err := ftp.Dial(ctx, ftp.Config{Host: "ftp.example.com", Port: 21})
	if err != nil {
		log.Fatal(err)
	}
	defer sess.Disconnect()

	content := bytes.NewReader([]byte("hello"))
	if err := sess.Upload(ctx, "/incoming/hello.txt", content); err != nil {
		log.Fatal(err)
	}
}

func ExampleSession_DownloadStream() {
	ctx := context.Background()

	sess, err := ftp.Dial(ctx, ftp.Config{Host: "ftp.example.com", Port: 21})
	if err != nil {
		log.Fatal(err)
	}
	defer sess.Disconnect()

	stream, err := sess.DownloadStream(ctx, "/archive/big.tar.gz")
	if err != nil {
		log.Fatal(err)
	}
	defer stream.Close()

	f, err := os.Create("big.tar.gz")
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	if _, err := io.Copy(f, stream); err != nil {
		log.Fatal(err)
	}
}

func ExampleSession_Download_notFound() {
	ctx := context.Background()

	sess, err := ftp.Dial(ctx, ftp.Config{Host: "ftp.example.com", Port: 21})
	if err != nil {
		log.Fatal(err)
	}
	defer sess.Disconnect()

	_, err = sess.Download(ctx, "/no/such/file")
	var te *ftp.TransferError
	if errors.As(err, &te) && te.NotFound {
		fmt.Println("file does not exist on the server")
	}
}

func ExampleWithThrottle() {
	ctx := context.Background()

	// Cap data channel throughput at 512 KiB/s in both directions.
	sess, err := ftp.Dial(ctx,
		ftp.Config{Host: "ftp.example.com", Port: 21},
		ftp.WithThrottle(512*1024),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer sess.Disconnect()
}
