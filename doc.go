// Package fwaudio reads audio files into pretraining records by transcribing
// them with faster-whisper.
//
// A Reader resolves its input files once, loads a transcription backend once,
// and then yields the records of one file per Read call:
//
//	r := fwaudio.NewReader(fwaudio.Config{Input: []string{"talks/*.wav"}})
//	if err := r.Initialize(ctx); err != nil {
//	    return err
//	}
//	defer r.Close(ctx)
//
//	for !r.HasFinished() {
//	    it, err := r.Read(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    results, err := provider.Collect(ctx, it)
//	    ...
//	}
//
// Each file yields either its records (one per segment, or one per file with
// CombineSegments) or a single failed Result. A failed file never stops the run.
package fwaudio
