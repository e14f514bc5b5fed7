package voiceclient

import (
	"strings"
	"testing"
)

func TestBoundary(t *testing.T) {
	if got := Boundary(98765); got != "----Boundary98765" {
		t.Fatalf("Boundary = %q", got)
	}
}

func TestBuildPartsWithSession(t *testing.T) {
	p := BuildParts("----Boundary1", "abc")

	wantHead := "------Boundary1\r\n" +
		"Content-Disposition: form-data; name=\"audio\"; filename=\"recording.wav\"\r\n" +
		"Content-Type: audio/wav\r\n\r\n"
	wantMid := "\r\n" +
		"------Boundary1\r\n" +
		"Content-Disposition: form-data; name=\"session_id\"\r\n\r\n" +
		"abc\r\n" +
		"------Boundary1\r\n" +
		"Content-Disposition: form-data; name=\"use_rag\"\r\n\r\n" +
		"true\r\n"
	wantTail := "------Boundary1--\r\n"

	if string(p.Head) != wantHead {
		t.Fatalf("head:\n%q\nwant\n%q", p.Head, wantHead)
	}
	if string(p.Mid) != wantMid {
		t.Fatalf("mid:\n%q\nwant\n%q", p.Mid, wantMid)
	}
	if string(p.Tail) != wantTail {
		t.Fatalf("tail:\n%q\nwant\n%q", p.Tail, wantTail)
	}

	wav := 960044
	if got := p.ContentLength(wav); got != len(wantHead)+wav+len(wantMid)+len(wantTail) {
		t.Fatalf("ContentLength = %d", got)
	}
	if p.ContentType() != "multipart/form-data; boundary=----Boundary1" {
		t.Fatalf("ContentType = %q", p.ContentType())
	}
}

func TestBuildPartsWithoutSession(t *testing.T) {
	p := BuildParts("----Boundary1", "")
	if strings.Contains(string(p.Mid), "session_id") {
		t.Fatal("session_id part present with empty session")
	}
	if !strings.Contains(string(p.Mid), "name=\"use_rag\"\r\n\r\ntrue\r\n") {
		t.Fatal("use_rag part missing")
	}
	if !strings.HasPrefix(string(p.Mid), "\r\n------Boundary1\r\n") {
		t.Fatalf("mid must close the audio part first: %q", p.Mid)
	}
}
