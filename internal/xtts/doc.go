// Package xtts talks to a Coqui XTTS-v2 inference server over HTTP.
//
// Two server APIs are supported. In latents mode (xtts-streaming-server) the
// reference voice is uploaded once to /clone_speaker and the returned
// conditioning latents are cached and sent with every /tts request. In
// speaker mode (xtts-api-server) the server reads the reference WAV itself
// from a path it can see, and /tts_to_audio/ answers with a WAV file.
package xtts
