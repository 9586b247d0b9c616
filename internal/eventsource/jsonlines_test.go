package eventsource

import (
	"io"
	"strings"
	"testing"
)

const sampleLine = `{"direction":"apply","height":767430,"hash":"00deadbeef","parentHash":"00beef","timestamp":"2023-03-08T00:00:00Z",` +
	`"ordinals":[{"kind":"inscription_revealed","inscriptionId":"abc123i0","ordinalNumber":1234567890,"number":42,"classicNumber":42,` +
	`"address":"bc1qexample","mimeType":"text/plain","contentType":"text/plain;charset=utf-8","contentLength":11,"fee":660,"inputIndex":0,` +
	`"output":"abc123:0","txId":"abc123","txIndex":0}],` +
	`"brc20":[{"kind":"deploy","ticker":"PEPE","inscriptionId":"deployi0","address":"bc1qexample","max":"21000000","limit":"21000000","decimals":18,"txId":"abc123","txIndex":1}]}`

func TestJSONLinesSourceDecodesBlockEvent(t *testing.T) {
	src := NewJSONLinesSource(strings.NewReader(sampleLine + "\n"))
	ev, err := src.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Direction != DirectionApply {
		t.Errorf("direction = %q, want apply", ev.Direction)
	}
	if ev.Block.Height != 767430 || ev.Block.Hash != "00deadbeef" {
		t.Errorf("unexpected block identity: %+v", ev.Block)
	}
	if len(ev.Ordinals) != 1 {
		t.Fatalf("expected 1 ordinals op, got %d", len(ev.Ordinals))
	}
	reveal, ok := ev.Ordinals[0].(RevealOp)
	if !ok {
		t.Fatalf("expected RevealOp, got %T", ev.Ordinals[0])
	}
	if reveal.Reveal.Inscription.InscriptionID != "abc123i0" || reveal.Reveal.Inscription.OrdinalNumber != 1234567890 {
		t.Errorf("unexpected inscription: %+v", reveal.Reveal.Inscription)
	}
	if len(ev.Brc20) != 1 {
		t.Fatalf("expected 1 brc20 op, got %d", len(ev.Brc20))
	}
	deploy, ok := ev.Brc20[0].(DeployBrc20Op)
	if !ok {
		t.Fatalf("expected DeployBrc20Op, got %T", ev.Brc20[0])
	}
	if deploy.Deploy.Ticker != "PEPE" || deploy.Deploy.Max != "21000000" {
		t.Errorf("unexpected deploy op: %+v", deploy.Deploy)
	}

	if _, err := src.Next(); err != io.EOF {
		t.Errorf("expected io.EOF after last line, got %v", err)
	}
}

func TestJSONLinesSourceRejectsUnknownDirection(t *testing.T) {
	src := NewJSONLinesSource(strings.NewReader(`{"direction":"sideways","height":1,"hash":"h","ordinals":[],"brc20":[]}` + "\n"))
	if _, err := src.Next(); err == nil {
		t.Fatal("expected error for unknown direction")
	}
}

func TestJSONLinesSourceSkipsBlankLines(t *testing.T) {
	src := NewJSONLinesSource(strings.NewReader("\n\n" + sampleLine + "\n"))
	ev, err := src.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Block.Height != 767430 {
		t.Errorf("unexpected block height %d", ev.Block.Height)
	}
}

func TestFakeSourceReplaysThenEOF(t *testing.T) {
	fake := NewFakeSource(BlockEvent{Direction: DirectionApply, Block: BlockIdentity{Height: 1}})
	if _, err := fake.Next(); err != nil {
		t.Fatalf("first Next: %v", err)
	}
	if _, err := fake.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}
