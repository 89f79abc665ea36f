//go:build !linux

package main

func registerPlatform() {}
