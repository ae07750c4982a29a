//go:build darwin

package permissions

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework ApplicationServices -framework CoreServices -framework Foundation
#import <ApplicationServices/ApplicationServices.h>
#import <CoreServices/CoreServices.h>
#import <Foundation/Foundation.h>

// Query the trust database without prompting
bool sqaIsTrusted() {
    NSDictionary *options = @{(__bridge NSString *)kAXTrustedCheckOptionPrompt: @NO};
    return AXIsProcessTrustedWithOptions((__bridge CFDictionaryRef)options);
}
*/
import "C"

type axChecker struct{}

func (axChecker) Trusted() bool {
	return bool(C.sqaIsTrusted())
}
