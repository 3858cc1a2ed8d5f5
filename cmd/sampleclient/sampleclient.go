// A sample DICOM client: issues C-STORE or C-FIND against a remote AE.
package main

import (
	"flag"

	"github.com/golang/glog"
	"github.com/kcenon/pacsgo"
	"github.com/kcenon/pacsgo/sopclass"
	"github.com/kcenon/pacsgo/transfersyntax"
	"github.com/yasushi-saito/go-dicom"
)

var (
	serverFlag = flag.String("server", "localhost:10000", "host:port of the remote application entity")
	storeFlag  = flag.String("store", "", "If set, issue C-STORE to copy this file to the remote server")
	findFlag   = flag.String("find", "", "If set (to any value), issue a study-level C-FIND")
)

func cStore(server, inPath string) {
	ds, err := dicom.ReadDataSetFromFile(inPath, dicom.ReadOptions{})
	if err != nil {
		glog.Exitf("%s: failed to parse as DICOM: %v", inPath, err)
	}
	transferSyntaxElem, err := ds.FindElementByTag(dicom.TagTransferSyntaxUID)
	if err != nil {
		glog.Exit(err)
	}
	transferSyntaxUID, err := transferSyntaxElem.GetString()
	if err != nil {
		glog.Exit(err)
	}
	params, err := netdicom.NewServiceUserParams(
		"dontcare", "sampleclient", sopclass.StorageClasses, []string{transferSyntaxUID})
	if err != nil {
		glog.Exit(err)
	}
	su := netdicom.NewServiceUser(params)
	defer su.Release()
	su.Connect(server)

	if err := su.CStore(ds); err != nil {
		glog.Exitf("%s: cstore failed: %v", inPath, err)
	}
	glog.Info("C-STORE done")
}

func cFind(server string) {
	params, err := netdicom.NewServiceUserParams(
		"dontcare", "sampleclient", sopclass.QRFindClasses,
		[]string{transfersyntax.ExplicitVRLittleEndian})
	if err != nil {
		glog.Exit(err)
	}
	su := netdicom.NewServiceUser(params)
	defer su.Release()
	glog.Infof("Connecting to %s", server)
	su.Connect(server)
	args := []*dicom.Element{
		dicom.MustNewElement(dicom.TagSpecificCharacterSet, "ISO_IR 100"),
		dicom.MustNewElement(dicom.TagAccessionNumber, ""),
		dicom.MustNewElement(dicom.TagReferringPhysicianName, ""),
		dicom.MustNewElement(dicom.TagPatientName, ""),
		dicom.MustNewElement(dicom.TagPatientID, ""),
		dicom.MustNewElement(dicom.TagPatientBirthDate, ""),
		dicom.MustNewElement(dicom.TagPatientSex, ""),
		dicom.MustNewElement(dicom.TagStudyInstanceUID, ""),
	}
	for result := range su.CFind(netdicom.CFindStudyQRLevel, args) {
		if result.Err != nil {
			glog.Errorf("C-FIND error: %v", result.Err)
			continue
		}
		glog.Infof("Got response with %d elems", len(result.Elements))
		for _, elem := range result.Elements {
			glog.Infof("Got elem: %v", elem.String())
		}
	}
}

func main() {
	flag.Parse()

	if *storeFlag != "" {
		cStore(*serverFlag, *storeFlag)
	} else if *findFlag != "" {
		cFind(*serverFlag)
	} else {
		glog.Exit("Either -store or -find must be set")
	}
}
