// A sample program for sending a DICOM file to a remote provider using the
// C-STORE protocol.
package main

import (
	"flag"

	"github.com/golang/glog"
	"github.com/kcenon/pacsgo"
	"github.com/kcenon/pacsgo/sopclass"
	"github.com/yasushi-saito/go-dicom"
)

func main() {
	flag.Parse()
	if len(flag.Args()) != 2 {
		glog.Exit("Usage: storeclient <serverhost:port> <file>")
	}
	server, inPath := flag.Arg(0), flag.Arg(1)

	ds, err := dicom.ReadDataSetFromFile(inPath, dicom.ReadOptions{})
	if err != nil {
		glog.Exitf("%s: failed to parse as DICOM: %v", inPath, err)
	}
	transferSyntaxElem, err := ds.FindElementByTag(dicom.TagTransferSyntaxUID)
	if err != nil {
		glog.Exitf("%s: file does not contain TransferSyntaxUID: %v", inPath, err)
	}
	transferSyntaxUID, err := transferSyntaxElem.GetString()
	if err != nil {
		glog.Exitf("%s: TransferSyntaxUID is not a string: %v", inPath, err)
	}

	params, err := netdicom.NewServiceUserParams(
		"dontcare", "storeclient", sopclass.StorageClasses,
		[]string{transferSyntaxUID})
	if err != nil {
		glog.Exitf("Failed to create service user params: %v", err)
	}
	su := netdicom.NewServiceUser(params)
	su.Connect(server)
	defer su.Release()

	if err := su.CStore(ds); err != nil {
		glog.Exitf("%s: cstore failed: %v", inPath, err)
	}
	glog.Infof("%s: stored successfully", inPath)
}
