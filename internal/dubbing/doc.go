// Package dubbing sequences one dubbing job end to end.
//
// A job runs validate, extract, speakers, voice_samples, synthesize,
// background, remix, mux, and finalize in order. Each stage runs only after
// the previous one succeeded and reports progress to the caller. Every
// intermediate file lives in the job's own work directory, which is removed
// on success and failure alike. A failure surfaces as a single StageError
// naming the stage that broke.
package dubbing
